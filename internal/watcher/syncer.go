package watcher

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/pkg/errors"

	"github.com/polkassembly/governance/internal/config"
)

// Syncer mirrors chain items into the discussion db. Every write path
// checks for an existing row first, so replaying an event is harmless.
type Syncer struct {
	Discussion Discussion
	Chain      Chain
	Auth       TokenSource
	Topics     config.TopicConfig
	BotUserID  int
	StartBlock int
	Logger     *slog.Logger
}

// syncOrder puts treasury proposals before the motions that cross-link
// them, and proposals and motions before the referenda linked to them.
var syncOrder = []Kind{
	KindProposal,
	KindTreasuryProposal,
	KindBounty,
	KindChildBounty,
	KindTechCommitteeProposal,
	KindTip,
	KindMotion,
	KindReferendum,
	KindReferendumV2,
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Handle routes an event to the matching operation.
func (s *Syncer) Handle(ctx context.Context, e Event) error {
	switch e.Kind {
	case KindReferendum:
		return s.LinkReferendum(ctx, e)
	case KindReferendumV2Status:
		return s.UpdateReferendumStatus(ctx, e)
	default:
		return s.Upsert(ctx, e)
	}
}

func (s *Syncer) Upsert(ctx context.Context, e Event) error {
	d, err := descriptorFor(e.Kind)
	if err != nil {
		return err
	}

	exists, err := s.Discussion.Exists(ctx, e.Kind, e.ID)
	if err != nil {
		return err
	}
	if exists {
		duplicatesSkipped.WithLabelValues(string(e.Kind)).Inc()
		s.logger().Debug("already exists in the discussion db, not inserted", "kind", e.Kind, "id", e.ID)
		return nil
	}

	if e.Kind == KindMotion {
		if treasuryID, ok := motionTreasuryID(e); ok {
			return s.linkMotionToTreasury(ctx, e, treasuryID)
		}
	}

	proposer := e.Proposer
	if proposer == "" {
		proposer = e.PreimageAuthor
	}
	if proposer == "" {
		return errors.Errorf("%s has no proposer", e)
	}

	topicID, env := d.topic(s.Topics, e)
	if topicID == 0 {
		return errors.Errorf("%s not set", env)
	}
	if s.Topics.ProposalPostType == 0 {
		return errors.New("HASURA_PROPOSAL_POST_TYPE_ID not set")
	}
	if s.BotUserID == 0 {
		return errors.New("PROPOSAL_BOT_USER_ID not set")
	}

	in := LinkInput{
		Kind:            e.Kind,
		OnchainID:       e.ID,
		AuthorID:        s.BotUserID,
		ProposerAddress: proposer,
		TopicID:         topicID,
		TypeID:          s.Topics.ProposalPostType,
		Content:         Description(d.label, proposer),
	}
	if e.Kind == KindReferendumV2 {
		in.Track = e.Track
		in.Origin = e.Origin
		in.Status = e.Status
	}
	if e.Kind == KindTreasuryProposal || e.Kind == KindTip {
		draft, err := s.Discussion.DraftProposal(ctx, e.Kind, e.ID)
		if err != nil {
			return err
		}
		if draft != nil && draft.ProposerAddress == proposer {
			in.Title = draft.Title
			in.Content = draft.Content
		}
	}

	token, err := s.Auth.Token(ctx)
	if err != nil {
		return err
	}
	rowID, err := s.Discussion.InsertPostAndLink(ctx, token, in)
	if err != nil {
		return err
	}
	discussionsInserted.WithLabelValues(string(e.Kind)).Inc()
	s.logger().Info("added to the discussion db", "kind", e.Kind, "id", e.ID, "link_id", rowID)
	return nil
}

func (s *Syncer) linkMotionToTreasury(ctx context.Context, e Event, treasuryID int) error {
	motionID, err := strconv.Atoi(e.ID)
	if err != nil {
		return errors.Wrapf(err, "motion id %q", e.ID)
	}
	token, err := s.Auth.Token(ctx)
	if err != nil {
		return err
	}
	n, err := s.Discussion.LinkMotionToTreasury(ctx, token, motionID, treasuryID)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Errorf("motion %d not linked: no discussion for treasury proposal %d", motionID, treasuryID)
	}
	updatesApplied.WithLabelValues(string(KindMotion)).Inc()
	s.logger().Info("motion linked to treasury proposal", "motion_id", motionID, "treasury_proposal_id", treasuryID)
	return nil
}

// LinkReferendum attaches a v1 referendum to the proposal or council motion
// it came from.
func (s *Syncer) LinkReferendum(ctx context.Context, e Event) error {
	if e.Status != StatusStarted {
		return errors.Errorf("referendum %s has unexpected status %q, expected %q", e.ID, e.Status, StatusStarted)
	}
	if e.PreimageHash == "" {
		return errors.Errorf("referendum %s has no preimage hash", e.ID)
	}
	referendumID, err := strconv.Atoi(e.ID)
	if err != nil {
		return errors.Wrapf(err, "referendum id %q", e.ID)
	}

	proposalID, found, err := s.tabledProposal(ctx, e)
	if err != nil {
		s.logger().Warn("no unique tabled proposal, trying council motions", "referendum_id", referendumID, "error", err)
	}
	if found {
		open, err := s.Discussion.ProposalWithoutReferendum(ctx, proposalID)
		if err != nil {
			return err
		}
		if !open {
			s.logger().Warn("proposal missing from the discussion db or already linked", "proposal_id", proposalID, "referendum_id", referendumID)
			return nil
		}
		return s.addReferendum(ctx, "proposal", proposalID, referendumID, s.Discussion.AddReferendumToProposal)
	}

	motions, err := s.Chain.ExecutedMotionsWithPreimage(ctx, e.PreimageHash, e.BlockNumber)
	if err != nil {
		return err
	}
	if len(motions) == 0 {
		s.logger().Warn("no motion found on chain for referendum", "referendum_id", referendumID, "preimage_hash", e.PreimageHash)
		return nil
	}
	motionID := motions[0]
	open, err := s.Discussion.MotionWithoutReferendum(ctx, motionID)
	if err != nil {
		return err
	}
	if !open {
		s.logger().Warn("motion missing from the discussion db or already linked", "motion_id", motionID, "referendum_id", referendumID)
		return nil
	}
	return s.addReferendum(ctx, "motion", motionID, referendumID, s.Discussion.AddReferendumToMotion)
}

func (s *Syncer) addReferendum(ctx context.Context, target string, id, referendumID int,
	add func(ctx context.Context, token string, id, referendumID int) (int, error),
) error {
	token, err := s.Auth.Token(ctx)
	if err != nil {
		return err
	}
	n, err := add(ctx, token, id, referendumID)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Errorf("referendum %d not linked to %s %d", referendumID, target, id)
	}
	updatesApplied.WithLabelValues(string(KindReferendum)).Inc()
	s.logger().Info("referendum linked", "referendum_id", referendumID, target+"_id", id)
	return nil
}

// tabledProposal finds the democracy proposal tabled at the referendum's
// creation block, using the preimage hash when several were tabled.
func (s *Syncer) tabledProposal(ctx context.Context, e Event) (int, bool, error) {
	proposals, err := s.Chain.TabledProposalsAtBlock(ctx, e.BlockNumber)
	if err != nil {
		return 0, false, err
	}
	switch len(proposals) {
	case 0:
		return 0, false, nil
	case 1:
		return proposals[0].ProposalID, true, nil
	}
	var match []TabledProposal
	for _, p := range proposals {
		if p.PreimageHash == e.PreimageHash {
			match = append(match, p)
		}
	}
	if len(match) != 1 {
		return 0, false, errors.Errorf("%d proposals tabled at block %d, preimage %s matches %d", len(proposals), e.BlockNumber, e.PreimageHash, len(match))
	}
	return match[0].ProposalID, true, nil
}

func (s *Syncer) UpdateReferendumStatus(ctx context.Context, e Event) error {
	referendumID, err := strconv.Atoi(e.ID)
	if err != nil {
		return errors.Wrapf(err, "referendum id %q", e.ID)
	}
	exists, err := s.Discussion.Exists(ctx, KindReferendumV2, e.ID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Errorf("status received for referendum %d which is not present in the discussion db", referendumID)
	}
	token, err := s.Auth.Token(ctx)
	if err != nil {
		return err
	}
	n, err := s.Discussion.UpdateReferendumV2Status(ctx, token, referendumID, e.Status)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Errorf("referendum %d status not updated", referendumID)
	}
	updatesApplied.WithLabelValues(string(KindReferendumV2Status)).Inc()
	s.logger().Info("referendum status updated", "referendum_id", referendumID, "status", e.Status)
	return nil
}

// process handles one event and logs instead of returning: a failed event
// is dropped.
func (s *Syncer) process(ctx context.Context, e Event) {
	eventsReceived.WithLabelValues(string(e.Kind)).Inc()
	if err := s.Handle(ctx, e); err != nil {
		failures.WithLabelValues(string(e.Kind)).Inc()
		s.logger().Error("event dropped", "kind", e.Kind, "id", e.ID, "error", err)
	}
}

// SyncAll replays every item from StartBlock through the same handlers as
// live events.
func (s *Syncer) SyncAll(ctx context.Context) error {
	resyncs.Inc()
	s.logger().Info("syncing chain db and discussion db", "start_block", s.StartBlock)
	for _, kind := range syncOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := s.Chain.List(ctx, kind, s.StartBlock)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger().Error("resync list failed", "kind", kind, "error", err)
			continue
		}
		for _, e := range events {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.process(ctx, e)
		}
	}
	return nil
}
