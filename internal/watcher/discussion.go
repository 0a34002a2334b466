package watcher

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// LinkInput is one post plus its onchain_links row.
type LinkInput struct {
	Kind            Kind
	OnchainID       string
	AuthorID        int
	ProposerAddress string
	TopicID         int
	TypeID          int
	Title           string
	Content         string

	// referendum v2 only
	Track  int
	Origin string
	Status string
}

// DraftProposal is a title and body written on Polkassembly before the
// proposal reached the chain.
type DraftProposal struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	ProposerAddress string `json:"proposer_address"`
}

// Discussion is the discussion database as seen by the watcher.
type Discussion interface {
	Login(ctx context.Context, username, password string) (string, error)
	Exists(ctx context.Context, kind Kind, id string) (bool, error)
	InsertPostAndLink(ctx context.Context, token string, in LinkInput) (int, error)
	DraftProposal(ctx context.Context, kind Kind, id string) (*DraftProposal, error)
	LinkMotionToTreasury(ctx context.Context, token string, motionID, treasuryID int) (int, error)
	ProposalWithoutReferendum(ctx context.Context, proposalID int) (bool, error)
	MotionWithoutReferendum(ctx context.Context, motionID int) (bool, error)
	AddReferendumToProposal(ctx context.Context, token string, proposalID, referendumID int) (int, error)
	AddReferendumToMotion(ctx context.Context, token string, motionID, referendumID int) (int, error)
	UpdateReferendumV2Status(ctx context.Context, token string, referendumID int, status string) (int, error)
}

// DiscussionClient talks to the Hasura endpoint of the discussion db.
type DiscussionClient struct {
	endpoint
}

func NewDiscussionClient(url string) *DiscussionClient {
	return &DiscussionClient{endpoint: newEndpoint(url)}
}

type linkRows struct {
	Links []struct {
		ID int `json:"id"`
	} `json:"onchain_links"`
}

type affected struct {
	Update struct {
		AffectedRows int `json:"affected_rows"`
	} `json:"update_onchain_links"`
}

const loginMutation = `mutation login($username: String!, $password: String!) {
	login(username: $username, password: $password) { token }
}`

func (c *DiscussionClient) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Login *struct {
			Token *string `json:"token"`
		} `json:"login"`
	}
	vars := map[string]interface{}{"username": username, "password": password}
	if err := c.exec(ctx, "", loginMutation, vars, &out); err != nil {
		return "", errors.Wrap(err, "proposal bot login")
	}
	if out.Login == nil || out.Login.Token == nil {
		return "", nil
	}
	return *out.Login.Token, nil
}

func (c *DiscussionClient) Exists(ctx context.Context, kind Kind, id string) (bool, error) {
	d, err := descriptorFor(kind)
	if err != nil {
		return false, err
	}
	v, err := d.idValue(id)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`query discussionExists($id: %s!) {
	onchain_links(where: {%s: {_eq: $id}}) { id }
}`, d.idType(), d.column)

	var out linkRows
	if err := c.exec(ctx, "", query, map[string]interface{}{"id": v}, &out); err != nil {
		return false, errors.Wrapf(err, "%s discussion exists", kind)
	}
	return len(out.Links) > 0, nil
}

func (c *DiscussionClient) InsertPostAndLink(ctx context.Context, token string, in LinkInput) (int, error) {
	d, err := descriptorFor(in.Kind)
	if err != nil {
		return 0, err
	}
	id, err := d.idValue(in.OnchainID)
	if err != nil {
		return 0, err
	}

	vars := map[string]interface{}{
		"onchainId":       id,
		"authorId":        in.AuthorID,
		"proposerAddress": in.ProposerAddress,
		"content":         in.Content,
		"topicId":         in.TopicID,
		"typeId":          in.TypeID,
		"title":           nil,
	}
	if in.Title != "" {
		vars["title"] = in.Title
	}

	params := ""
	extra := ""
	if in.Kind == KindReferendumV2 {
		params = ", $track: Int!, $origin: String, $status: String"
		extra = " track: $track, origin: $origin, status: $status,"
		vars["track"] = in.Track
		vars["origin"] = in.Origin
		vars["status"] = in.Status
	}

	query := fmt.Sprintf(`mutation addPostAndLink($onchainId: %s!, $authorId: Int!, $proposerAddress: String!, $content: String!, $title: String, $topicId: Int!, $typeId: Int!%s) {
	insert_onchain_links(objects: {%s: $onchainId, proposer_address: $proposerAddress,%s post: {data: {author_id: $authorId, content: $content, title: $title, topic_id: $topicId, type_id: $typeId}}}) {
		returning { id }
	}
}`, d.idType(), params, d.column, extra)

	var out struct {
		Insert struct {
			Returning []struct {
				ID int `json:"id"`
			} `json:"returning"`
		} `json:"insert_onchain_links"`
	}
	if err := c.exec(ctx, token, query, vars, &out); err != nil {
		return 0, errors.Wrapf(err, "insert %s %s", in.Kind, in.OnchainID)
	}
	if len(out.Insert.Returning) == 0 {
		return 0, errors.Errorf("insert %s %s returned no row", in.Kind, in.OnchainID)
	}
	return out.Insert.Returning[0].ID, nil
}

func (c *DiscussionClient) DraftProposal(ctx context.Context, kind Kind, id string) (*DraftProposal, error) {
	d, err := descriptorFor(kind)
	if err != nil {
		return nil, err
	}
	v, err := d.idValue(id)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`query draftProposal($id: %s!) {
	polkassembly_proposals(where: {%s: {_eq: $id}}) { title content proposer_address }
}`, d.idType(), d.column)

	var out struct {
		Proposals []DraftProposal `json:"polkassembly_proposals"`
	}
	if err := c.exec(ctx, "", query, map[string]interface{}{"id": v}, &out); err != nil {
		return nil, errors.Wrapf(err, "draft for %s %s", kind, id)
	}
	if len(out.Proposals) == 0 {
		return nil, nil
	}
	return &out.Proposals[0], nil
}

const linkMotionMutation = `mutation addMotionIdToTreasuryProposal($motionId: Int!, $treasuryProposalId: Int!) {
	update_onchain_links(where: {onchain_treasury_proposal_id: {_eq: $treasuryProposalId}}, _set: {onchain_motion_id: $motionId}) { affected_rows }
}`

func (c *DiscussionClient) LinkMotionToTreasury(ctx context.Context, token string, motionID, treasuryID int) (int, error) {
	var out affected
	vars := map[string]interface{}{"motionId": motionID, "treasuryProposalId": treasuryID}
	if err := c.exec(ctx, token, linkMotionMutation, vars, &out); err != nil {
		return 0, errors.Wrapf(err, "link motion %d to treasury proposal %d", motionID, treasuryID)
	}
	return out.Update.AffectedRows, nil
}

func (c *DiscussionClient) withoutReferendum(ctx context.Context, column string, id int) (bool, error) {
	query := fmt.Sprintf(`query withoutReferendum($id: Int!) {
	onchain_links(where: {%s: {_eq: $id}, onchain_referendum_id: {_is_null: true}}) { id }
}`, column)
	var out linkRows
	if err := c.exec(ctx, "", query, map[string]interface{}{"id": id}, &out); err != nil {
		return false, errors.Wrapf(err, "%s %d without referendum", column, id)
	}
	return len(out.Links) > 0, nil
}

func (c *DiscussionClient) ProposalWithoutReferendum(ctx context.Context, proposalID int) (bool, error) {
	return c.withoutReferendum(ctx, "onchain_proposal_id", proposalID)
}

func (c *DiscussionClient) MotionWithoutReferendum(ctx context.Context, motionID int) (bool, error) {
	return c.withoutReferendum(ctx, "onchain_motion_id", motionID)
}

func (c *DiscussionClient) addReferendum(ctx context.Context, token, column string, id, referendumID int) (int, error) {
	query := fmt.Sprintf(`mutation addReferendumId($id: Int!, $referendumId: Int!) {
	update_onchain_links(where: {%s: {_eq: $id}}, _set: {onchain_referendum_id: $referendumId}) { affected_rows }
}`, column)
	var out affected
	vars := map[string]interface{}{"id": id, "referendumId": referendumID}
	if err := c.exec(ctx, token, query, vars, &out); err != nil {
		return 0, errors.Wrapf(err, "add referendum %d to %s %d", referendumID, column, id)
	}
	return out.Update.AffectedRows, nil
}

func (c *DiscussionClient) AddReferendumToProposal(ctx context.Context, token string, proposalID, referendumID int) (int, error) {
	return c.addReferendum(ctx, token, "onchain_proposal_id", proposalID, referendumID)
}

func (c *DiscussionClient) AddReferendumToMotion(ctx context.Context, token string, motionID, referendumID int) (int, error) {
	return c.addReferendum(ctx, token, "onchain_motion_id", motionID, referendumID)
}

const referendumV2StatusMutation = `mutation updateReferendumV2Status($id: Int!, $status: String!) {
	update_onchain_links(where: {onchain_referendumv2_id: {_eq: $id}}, _set: {status: $status}) { affected_rows }
}`

func (c *DiscussionClient) UpdateReferendumV2Status(ctx context.Context, token string, referendumID int, status string) (int, error) {
	var out affected
	vars := map[string]interface{}{"id": referendumID, "status": status}
	if err := c.exec(ctx, token, referendumV2StatusMutation, vars, &out); err != nil {
		return 0, errors.Wrapf(err, "update referendum v2 %d status", referendumID)
	}
	return out.Update.AffectedRows, nil
}
