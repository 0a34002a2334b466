package watcher

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/polkassembly/governance/internal/retry"
)

// TokenSource hands out a bearer token for discussion db writes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// BotAuth logs the proposal bot in for every write. There is no caching;
// writes are rare.
type BotAuth struct {
	URL        string
	Username   string
	Password   string
	Discussion Discussion
	Policy     retry.Policy
	Logger     *slog.Logger
}

func (b *BotAuth) Token(ctx context.Context) (string, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := b.Policy
	if policy.OnFailedAttempt == nil {
		policy.OnFailedAttempt = func(attempt, max int, err error) {
			logger.Warn("proposal bot login failed, retrying", "attempt", attempt, "max_attempts", max, "error", err)
		}
	}

	res := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		if b.URL == "" {
			return "", retry.Abort(errors.New("REACT_APP_HASURA_GRAPHQL_URL not set"))
		}
		if b.Username == "" || b.Password == "" {
			return "", retry.Abort(errors.New("PROPOSAL_BOT_USERNAME or PROPOSAL_BOT_PASSWORD not set"))
		}
		token, err := b.Discussion.Login(ctx, b.Username, b.Password)
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", retry.Abort(errors.New("unexpected data at proposal bot login: empty token"))
		}
		return token, nil
	})

	botLogins.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome != retry.Success {
		return "", errors.Wrapf(res.Err, "proposal bot login %s after %d attempts", res.Outcome, res.Attempts)
	}
	return res.Value, nil
}
