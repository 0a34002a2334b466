package watcher

import (
	"fmt"
	"strconv"

	"github.com/polkassembly/governance/internal/config"
)

type Kind string

const (
	KindProposal              Kind = "proposal"
	KindTreasuryProposal      Kind = "treasury_proposal"
	KindBounty                Kind = "bounty"
	KindChildBounty           Kind = "child_bounty"
	KindTechCommitteeProposal Kind = "tech_committee_proposal"
	KindTip                   Kind = "tip"
	KindMotion                Kind = "motion"
	KindReferendum            Kind = "referendum"
	KindReferendumV2          Kind = "referendum_v2"
	KindReferendumV2Status    Kind = "referendum_v2_status"
)

// StatusStarted is the only status a freshly created referendum may carry.
const StatusStarted = "Started"

type MotionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event is one governance item read from the chain db. Only the fields
// relevant to its Kind are set.
type Event struct {
	Kind     Kind
	ID       string
	Proposer string

	// motion
	Section   string
	Arguments []MotionArgument

	// referendum
	PreimageHash string
	Status       string
	BlockNumber  int

	// referendum v2
	Track          int
	Origin         string
	PreimageAuthor string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.ID)
}

type topicFunc func(t config.TopicConfig, e Event) (id int, env string)

// descriptor tells the upsert how a kind maps onto an onchain_links row.
type descriptor struct {
	label     string
	column    string
	numericID bool
	topic     topicFunc
}

var treasuryTracks = map[int]bool{30: true, 31: true, 32: true, 34: true}

func democracyTopic(t config.TopicConfig, _ Event) (int, string) {
	return t.Democracy, "DEMOCRACY_TOPIC_ID"
}

func treasuryTopic(t config.TopicConfig, _ Event) (int, string) {
	return t.Treasury, "TREASURY_TOPIC_ID"
}

func councilTopic(t config.TopicConfig, _ Event) (int, string) {
	return t.Council, "COUNCIL_TOPIC_ID"
}

func techCommitteeTopic(t config.TopicConfig, _ Event) (int, string) {
	return t.TechCommittee, "TECH_COMMITTEE_PROPOSAL_TOPIC_ID"
}

// referendumTopic files treasury track referenda under the treasury topic.
func referendumTopic(t config.TopicConfig, e Event) (int, string) {
	if treasuryTracks[e.Track] {
		return treasuryTopic(t, e)
	}
	return democracyTopic(t, e)
}

var descriptors = map[Kind]descriptor{
	KindProposal:              {label: "proposal", column: "onchain_proposal_id", numericID: true, topic: democracyTopic},
	KindTreasuryProposal:      {label: "treasury proposal", column: "onchain_treasury_proposal_id", numericID: true, topic: treasuryTopic},
	KindBounty:                {label: "bounty proposal", column: "onchain_bounty_id", numericID: true, topic: treasuryTopic},
	KindChildBounty:           {label: "child bounty proposal", column: "onchain_child_bounty_id", numericID: true, topic: treasuryTopic},
	KindTechCommitteeProposal: {label: "techincal committee proposal", column: "onchain_tech_committee_proposal_id", numericID: true, topic: techCommitteeTopic},
	KindTip:                   {label: "tip", column: "onchain_tip_id", topic: treasuryTopic},
	KindMotion:                {label: "motion", column: "onchain_motion_id", numericID: true, topic: councilTopic},
	KindReferendumV2:          {label: "referendum", column: "onchain_referendumv2_id", numericID: true, topic: referendumTopic},
}

func descriptorFor(kind Kind) (descriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return descriptor{}, fmt.Errorf("no discussion mapping for %s", kind)
	}
	return d, nil
}

// idValue is the GraphQL variable for the on-chain id.
func (d descriptor) idValue(id string) (interface{}, error) {
	if !d.numericID {
		return id, nil
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("%s id %q is not numeric", d.label, id)
	}
	return n, nil
}

func (d descriptor) idType() string {
	if d.numericID {
		return "Int"
	}
	return "String"
}

// Description is the placeholder body of a post created for an on-chain item.
func Description(label, address string) string {
	return fmt.Sprintf("This is a %s whose proposer address (%s) is shown in on-chain info below. "+
		"Only this user can edit this description and the title. "+
		"If you own this account, login and tell us more about your proposal.", label, address)
}

// motionTreasuryID reports the treasury proposal a council motion votes on.
func motionTreasuryID(e Event) (int, bool) {
	if e.Section != "treasury" {
		return 0, false
	}
	for _, arg := range e.Arguments {
		if arg.Name != "proposal_id" && arg.Name != "proposalId" {
			continue
		}
		id, err := strconv.Atoi(arg.Value)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
