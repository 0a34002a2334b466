package watcher

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polkassembly/governance/internal/config"
	"github.com/polkassembly/governance/internal/logging"
)

type fakeDiscussion struct {
	mu sync.Mutex

	rows          map[Kind]map[string]bool
	inserted      []LinkInput
	drafts        map[string]*DraftProposal
	motionLinks   [][2]int
	openForRef    map[string]bool
	referendums   []string
	statuses      map[int]string
	existsErr     error
	loginToken    string
	loginFailures int
	loginCalls    int
}

func newFakeDiscussion() *fakeDiscussion {
	return &fakeDiscussion{
		rows:       map[Kind]map[string]bool{},
		drafts:     map[string]*DraftProposal{},
		openForRef: map[string]bool{},
		statuses:   map[int]string{},
		loginToken: "bot-token",
	}
}

func (f *fakeDiscussion) seed(kind Kind, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[kind] == nil {
		f.rows[kind] = map[string]bool{}
	}
	f.rows[kind][id] = true
}

func (f *fakeDiscussion) Login(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginCalls <= f.loginFailures {
		return "", errors.New("connection refused")
	}
	return f.loginToken, nil
}

func (f *fakeDiscussion) Exists(_ context.Context, kind Kind, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.rows[kind][id], nil
}

func (f *fakeDiscussion) InsertPostAndLink(_ context.Context, token string, in LinkInput) (int, error) {
	if token != "bot-token" {
		return 0, errors.New("unauthorised")
	}
	f.seed(in.Kind, in.OnchainID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, in)
	return len(f.inserted), nil
}

func (f *fakeDiscussion) insertedIDs(kind Kind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, in := range f.inserted {
		if in.Kind == kind {
			ids = append(ids, in.OnchainID)
		}
	}
	return ids
}

func (f *fakeDiscussion) DraftProposal(_ context.Context, kind Kind, id string) (*DraftProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drafts[string(kind)+":"+id], nil
}

func (f *fakeDiscussion) LinkMotionToTreasury(_ context.Context, _ string, motionID, treasuryID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.rows[KindTreasuryProposal][strconv.Itoa(treasuryID)] {
		return 0, nil
	}
	if f.rows[KindMotion] == nil {
		f.rows[KindMotion] = map[string]bool{}
	}
	f.rows[KindMotion][strconv.Itoa(motionID)] = true
	f.motionLinks = append(f.motionLinks, [2]int{motionID, treasuryID})
	return 1, nil
}

func (f *fakeDiscussion) ProposalWithoutReferendum(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openForRef["proposal:"+strconv.Itoa(id)], nil
}

func (f *fakeDiscussion) MotionWithoutReferendum(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openForRef["motion:"+strconv.Itoa(id)], nil
}

func (f *fakeDiscussion) addReferendum(target string, id, referendumID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := target + ":" + strconv.Itoa(id)
	if !f.openForRef[key] {
		return 0, nil
	}
	f.openForRef[key] = false
	f.referendums = append(f.referendums, key+"->"+strconv.Itoa(referendumID))
	return 1, nil
}

func (f *fakeDiscussion) AddReferendumToProposal(_ context.Context, _ string, id, referendumID int) (int, error) {
	return f.addReferendum("proposal", id, referendumID)
}

func (f *fakeDiscussion) AddReferendumToMotion(_ context.Context, _ string, id, referendumID int) (int, error) {
	return f.addReferendum("motion", id, referendumID)
}

func (f *fakeDiscussion) UpdateReferendumV2Status(_ context.Context, _ string, id int, status string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.rows[KindReferendumV2][strconv.Itoa(id)] {
		return 0, nil
	}
	f.statuses[id] = status
	return 1, nil
}

type fakeChain struct {
	mu        sync.Mutex
	tabled    map[int][]TabledProposal
	motions   map[string][]int
	lists     map[Kind][]Event
	listCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		tabled:  map[int][]TabledProposal{},
		motions: map[string][]int{},
		lists:   map[Kind][]Event{},
	}
}

func (c *fakeChain) TabledProposalsAtBlock(_ context.Context, block int) ([]TabledProposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tabled[block], nil
}

func (c *fakeChain) ExecutedMotionsWithPreimage(_ context.Context, hash string, _ int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motions[hash], nil
}

func (c *fakeChain) List(_ context.Context, kind Kind, _ int) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	return c.lists[kind], nil
}

func (c *fakeChain) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token(context.Context) (string, error) {
	return s.token, s.err
}

var testTopics = config.TopicConfig{
	Democracy:        1,
	Council:          2,
	TechCommittee:    3,
	Treasury:         4,
	ProposalPostType: 5,
}

func newTestSyncer(t *testing.T) (*Syncer, *fakeDiscussion, *fakeChain) {
	t.Helper()
	disc := newFakeDiscussion()
	chain := newFakeChain()
	s := &Syncer{
		Discussion: disc,
		Chain:      chain,
		Auth:       staticToken{token: "bot-token"},
		Topics:     testTopics,
		BotUserID:  99,
		Logger:     logging.Discard(),
	}
	return s, disc, chain
}

// fakeSubscriber routes emitted payloads to the handler whose query
// subscribes to the kind's root field.
type fakeSubscriber struct {
	mu        sync.Mutex
	handlers  map[string]func([]byte, error) error
	runErr    error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: map[string]func([]byte, error) error{}, closed: make(chan struct{})}
}

func (s *fakeSubscriber) SubscribeRaw(query string, _ map[string]interface{}, handler func([]byte, error) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range feeds {
		if strings.Contains(query, "\t"+f.subscription+"(") {
			s.handlers[f.subscription] = handler
			return f.subscription, nil
		}
	}
	return "", errors.New("unknown subscription")
}

func (s *fakeSubscriber) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *fakeSubscriber) emit(t *testing.T, kind Kind, payload string) {
	t.Helper()
	s.mu.Lock()
	h := s.handlers[feeds[kind].subscription]
	s.mu.Unlock()
	require.NotNil(t, h, "no subscription for %s", kind)
	require.NoError(t, h([]byte(payload), nil))
}

func (s *fakeSubscriber) Run() error {
	if s.runErr != nil {
		return s.runErr
	}
	<-s.closed
	return nil
}

func (s *fakeSubscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSubscriber) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
