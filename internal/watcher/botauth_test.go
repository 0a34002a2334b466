package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polkassembly/governance/internal/logging"
	"github.com/polkassembly/governance/internal/retry"
)

func newBotAuth(disc *fakeDiscussion) *BotAuth {
	return &BotAuth{
		URL:        "http://discussion.local/v1/graphql",
		Username:   "proposal_bot",
		Password:   "secret",
		Discussion: disc,
		Policy:     retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond},
		Logger:     logging.Discard(),
	}
}

func TestBotAuthRetriesUntilLoggedIn(t *testing.T) {
	t.Parallel()
	disc := newFakeDiscussion()
	disc.loginFailures = 2

	var failed []int
	b := newBotAuth(disc)
	b.Policy.OnFailedAttempt = func(attempt, max int, _ error) {
		require.Equal(t, 3, max)
		failed = append(failed, attempt)
	}

	token, err := b.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "bot-token", token)
	require.Equal(t, 3, disc.loginCalls)
	require.Equal(t, []int{1, 2}, failed)
}

func TestBotAuthExhausted(t *testing.T) {
	t.Parallel()
	disc := newFakeDiscussion()
	disc.loginFailures = 10

	_, err := newBotAuth(disc).Token(context.Background())
	require.ErrorContains(t, err, "exhausted after 3 attempts")
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 3, disc.loginCalls)
}

func TestBotAuthMissingCredentials(t *testing.T) {
	t.Parallel()
	disc := newFakeDiscussion()

	b := newBotAuth(disc)
	b.Password = ""
	_, err := b.Token(context.Background())
	require.ErrorContains(t, err, "PROPOSAL_BOT_PASSWORD not set")
	require.ErrorContains(t, err, "aborted after 1 attempts")

	b = newBotAuth(disc)
	b.URL = ""
	_, err = b.Token(context.Background())
	require.ErrorContains(t, err, "REACT_APP_HASURA_GRAPHQL_URL not set")

	require.Zero(t, disc.loginCalls)
}

func TestBotAuthEmptyTokenAborts(t *testing.T) {
	t.Parallel()
	disc := newFakeDiscussion()
	disc.loginToken = ""

	_, err := newBotAuth(disc).Token(context.Background())
	require.ErrorContains(t, err, "empty token")
	require.Equal(t, 1, disc.loginCalls)
}

func TestBotAuthCancelled(t *testing.T) {
	t.Parallel()
	disc := newFakeDiscussion()
	disc.loginFailures = 10

	b := newBotAuth(disc)
	b.Policy = retry.Policy{MaxAttempts: 5, Base: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	b.Policy.OnFailedAttempt = func(int, int, error) { cancel() }

	_, err := b.Token(ctx)
	require.ErrorContains(t, err, "cancelled")
	require.Equal(t, 1, disc.loginCalls)
}
