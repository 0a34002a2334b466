package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/pkg/errors"
)

// TabledProposal is a democracy proposal tabled into a referendum.
type TabledProposal struct {
	ProposalID   int
	PreimageHash string
}

// Chain is the read side of the chain-indexing db.
type Chain interface {
	TabledProposalsAtBlock(ctx context.Context, block int) ([]TabledProposal, error)
	ExecutedMotionsWithPreimage(ctx context.Context, preimageHash string, block int) ([]int, error)
	List(ctx context.Context, kind Kind, startBlock int) ([]Event, error)
}

// Subscriber is a websocket subscription client. A fresh one is created for
// every watch cycle.
type Subscriber interface {
	SubscribeRaw(query string, variables map[string]interface{}, handler func(message []byte, err error) error) (string, error)
	Run() error
	Close() error
}

// feed describes how one kind is read from the chain db.
type feed struct {
	subscription string
	list         string
	fields       string
	decode       func(node json.RawMessage) (Event, error)
}

const createdMutation = "CREATED"

func (f feed) subscriptionQuery() string {
	return fmt.Sprintf(`subscription watch($startBlock: Int!) {
	%s(where: {mutation_in: [CREATED], node: {blockNumber: {number_gte: $startBlock}}}) {
		mutation
		node { %s }
	}
}`, f.subscription, f.fields)
}

func (f feed) listQuery() string {
	return fmt.Sprintf(`query list($startBlock: Int!) {
	%s(where: {blockNumber: {number_gte: $startBlock}}) { %s }
}`, f.list, f.fields)
}

// decodeMessage extracts the event of a subscription payload. ok is false
// for mutations other than CREATED.
func (f feed) decodeMessage(msg []byte) (Event, bool, error) {
	var payload map[string]*struct {
		Mutation string          `json:"mutation"`
		Node     json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return Event{}, false, errors.Wrap(err, "decode subscription payload")
	}
	env := payload[f.subscription]
	if env == nil || env.Mutation != createdMutation || len(env.Node) == 0 {
		return Event{}, false, nil
	}
	ev, err := f.decode(env.Node)
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

func decodeNode(kind Kind, raw json.RawMessage, v interface{}) error {
	return errors.Wrapf(json.Unmarshal(raw, v), "decode %s", kind)
}

var feeds = map[Kind]feed{
	KindProposal: {
		subscription: "proposal", list: "proposals", fields: "proposalId author",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ProposalID int    `json:"proposalId"`
				Author     string `json:"author"`
			}
			err := decodeNode(KindProposal, raw, &n)
			return Event{Kind: KindProposal, ID: strconv.Itoa(n.ProposalID), Proposer: n.Author}, err
		},
	},
	KindTreasuryProposal: {
		subscription: "treasurySpendProposal", list: "treasurySpendProposals", fields: "treasuryProposalId proposer",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID       int    `json:"treasuryProposalId"`
				Proposer string `json:"proposer"`
			}
			err := decodeNode(KindTreasuryProposal, raw, &n)
			return Event{Kind: KindTreasuryProposal, ID: strconv.Itoa(n.ID), Proposer: n.Proposer}, err
		},
	},
	KindBounty: {
		subscription: "bounty", list: "bounties", fields: "bountyId proposer",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID       int    `json:"bountyId"`
				Proposer string `json:"proposer"`
			}
			err := decodeNode(KindBounty, raw, &n)
			return Event{Kind: KindBounty, ID: strconv.Itoa(n.ID), Proposer: n.Proposer}, err
		},
	},
	KindChildBounty: {
		subscription: "childBounty", list: "childBounties", fields: "childBountyId proposer",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID       int    `json:"childBountyId"`
				Proposer string `json:"proposer"`
			}
			err := decodeNode(KindChildBounty, raw, &n)
			return Event{Kind: KindChildBounty, ID: strconv.Itoa(n.ID), Proposer: n.Proposer}, err
		},
	},
	KindTechCommitteeProposal: {
		subscription: "techCommitteeProposal", list: "techCommitteeProposals", fields: "proposalId author",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID     int    `json:"proposalId"`
				Author string `json:"author"`
			}
			err := decodeNode(KindTechCommitteeProposal, raw, &n)
			return Event{Kind: KindTechCommitteeProposal, ID: strconv.Itoa(n.ID), Proposer: n.Author}, err
		},
	},
	KindTip: {
		subscription: "tip", list: "tips", fields: "hash finder",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				Hash   string `json:"hash"`
				Finder string `json:"finder"`
			}
			err := decodeNode(KindTip, raw, &n)
			return Event{Kind: KindTip, ID: n.Hash, Proposer: n.Finder}, err
		},
	},
	KindMotion: {
		subscription: "motion", list: "motions", fields: "motionProposalId author section motionProposalArguments { name value }",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID        int              `json:"motionProposalId"`
				Author    string           `json:"author"`
				Section   string           `json:"section"`
				Arguments []MotionArgument `json:"motionProposalArguments"`
			}
			err := decodeNode(KindMotion, raw, &n)
			return Event{Kind: KindMotion, ID: strconv.Itoa(n.ID), Proposer: n.Author, Section: n.Section, Arguments: n.Arguments}, err
		},
	},
	KindReferendum: {
		subscription: "referendum", list: "referendums",
		fields: "referendumId preimageHash referendumStatus(orderBy: id_ASC, first: 1) { status blockNumber { number } }",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID           int     `json:"referendumId"`
				PreimageHash *string `json:"preimageHash"`
				Status       []struct {
					Status      string `json:"status"`
					BlockNumber struct {
						Number int `json:"number"`
					} `json:"blockNumber"`
				} `json:"referendumStatus"`
			}
			if err := decodeNode(KindReferendum, raw, &n); err != nil {
				return Event{}, err
			}
			ev := Event{Kind: KindReferendum, ID: strconv.Itoa(n.ID)}
			if n.PreimageHash != nil {
				ev.PreimageHash = *n.PreimageHash
			}
			if len(n.Status) > 0 {
				ev.Status = n.Status[0].Status
				ev.BlockNumber = n.Status[0].BlockNumber.Number
			}
			return ev, nil
		},
	},
	KindReferendumV2: {
		subscription: "referendumV2", list: "referendumV2s",
		fields: "referendumId trackNumber origin referendumStatus preimage { author } submitted { who }",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				ID       int    `json:"referendumId"`
				Track    int    `json:"trackNumber"`
				Origin   string `json:"origin"`
				Status   string `json:"referendumStatus"`
				Preimage *struct {
					Author string `json:"author"`
				} `json:"preimage"`
				Submitted *struct {
					Who string `json:"who"`
				} `json:"submitted"`
			}
			if err := decodeNode(KindReferendumV2, raw, &n); err != nil {
				return Event{}, err
			}
			ev := Event{Kind: KindReferendumV2, ID: strconv.Itoa(n.ID), Track: n.Track, Origin: n.Origin, Status: n.Status}
			if n.Submitted != nil {
				ev.Proposer = n.Submitted.Who
			}
			if n.Preimage != nil {
				ev.PreimageAuthor = n.Preimage.Author
			}
			return ev, nil
		},
	},
	KindReferendumV2Status: {
		subscription: "referendumStatusV2", list: "referendumStatusV2s", fields: "status referendum { referendumId }",
		decode: func(raw json.RawMessage) (Event, error) {
			var n struct {
				Status     string `json:"status"`
				Referendum struct {
					ID int `json:"referendumId"`
				} `json:"referendum"`
			}
			err := decodeNode(KindReferendumV2Status, raw, &n)
			return Event{Kind: KindReferendumV2Status, ID: strconv.Itoa(n.Referendum.ID), Status: n.Status}, err
		},
	},
}

// ChainClient reads the chain db over GraphQL.
type ChainClient struct {
	endpoint
}

func NewChainClient(url string) *ChainClient {
	return &ChainClient{endpoint: newEndpoint(url)}
}

const tabledProposalsQuery = `query tabledProposalsAtBlock($blockNumber: Int!) {
	proposals(where: {proposalStatus_some: {status: "Tabled", blockNumber: {number: $blockNumber}}}) {
		proposalId
		preimage { hash }
	}
}`

func (c *ChainClient) TabledProposalsAtBlock(ctx context.Context, block int) ([]TabledProposal, error) {
	var out struct {
		Proposals []struct {
			ProposalID int `json:"proposalId"`
			Preimage   *struct {
				Hash string `json:"hash"`
			} `json:"preimage"`
		} `json:"proposals"`
	}
	if err := c.exec(ctx, "", tabledProposalsQuery, map[string]interface{}{"blockNumber": block}, &out); err != nil {
		return nil, errors.Wrapf(err, "proposals tabled at block %d", block)
	}
	res := make([]TabledProposal, 0, len(out.Proposals))
	for _, p := range out.Proposals {
		tp := TabledProposal{ProposalID: p.ProposalID}
		if p.Preimage != nil {
			tp.PreimageHash = p.Preimage.Hash
		}
		res = append(res, tp)
	}
	return res, nil
}

const executedMotionsQuery = `query executedMotionsWithPreimageHash($preimageHash: String!, $blockNumber: Int!) {
	motions(where: {preimageHash: $preimageHash, motionStatus_some: {status: "Executed", blockNumber: {number_lte: $blockNumber}}}) {
		motionProposalId
	}
}`

func (c *ChainClient) ExecutedMotionsWithPreimage(ctx context.Context, preimageHash string, block int) ([]int, error) {
	var out struct {
		Motions []struct {
			ID int `json:"motionProposalId"`
		} `json:"motions"`
	}
	vars := map[string]interface{}{"preimageHash": preimageHash, "blockNumber": block}
	if err := c.exec(ctx, "", executedMotionsQuery, vars, &out); err != nil {
		return nil, errors.Wrapf(err, "executed motions with preimage %s", preimageHash)
	}
	ids := make([]int, 0, len(out.Motions))
	for _, m := range out.Motions {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *ChainClient) List(ctx context.Context, kind Kind, startBlock int) ([]Event, error) {
	f, ok := feeds[kind]
	if !ok {
		return nil, errors.Errorf("no chain feed for %s", kind)
	}
	var out map[string][]json.RawMessage
	if err := c.exec(ctx, "", f.listQuery(), map[string]interface{}{"startBlock": startBlock}, &out); err != nil {
		return nil, errors.Wrapf(err, "list %s", kind)
	}
	events := make([]Event, 0, len(out[f.list]))
	for _, node := range out[f.list] {
		ev, err := f.decode(node)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// NewChainSubscriber returns a subscriptions-transport-ws client for the
// chain db.
func NewChainSubscriber(url string, logger *slog.Logger) Subscriber {
	return graphql.NewSubscriptionClient(url).
		WithProtocol(graphql.SubscriptionsTransportWS).
		WithTimeout(30 * time.Second).
		OnConnected(func() {
			logger.Info("chain db subscription connected")
		}).
		OnDisconnected(func() {
			logger.Warn("chain db subscription disconnected")
		}).
		OnError(func(_ *graphql.SubscriptionClient, err error) error {
			logger.Error("chain db subscription error", "error", err)
			return err
		})
}
