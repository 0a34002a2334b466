// Package retry runs an operation under a bounded exponential backoff and
// reports how it ended instead of panicking or throwing a sentinel.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

type Outcome int

const (
	Success Outcome = iota
	Exhausted
	Aborted
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Policy bounds an operation. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration

	// OnFailedAttempt runs after every failed attempt that will be retried
	// or that exhausted the policy. Aborted attempts are not reported.
	OnFailedAttempt func(attempt, maxAttempts int, err error)
}

// Result describes how Do ended. Err is nil only on Success.
type Result[T any] struct {
	Value    T
	Attempts int
	Outcome  Outcome
	Err      error
}

type abortError struct {
	err error
}

func (a *abortError) Error() string { return a.err.Error() }

func (a *abortError) Unwrap() error { return a.err }

// Abort marks err as permanent: Do stops immediately and reports Aborted.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backoff() goretry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	b := goretry.NewExponential(base)
	if p.Max > 0 {
		b = goretry.WithCappedDuration(p.Max, b)
	}
	return goretry.WithMaxRetries(uint64(p.maxAttempts()-1), b)
}

func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) Result[T] {
	var (
		res     Result[T]
		aborted bool
	)
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		res.Attempts++
		v, err := fn(ctx)
		if err == nil {
			res.Value = v
			return nil
		}
		var ab *abortError
		if errors.As(err, &ab) {
			aborted = true
			return ab.err
		}
		if p.OnFailedAttempt != nil {
			p.OnFailedAttempt(res.Attempts, p.maxAttempts(), err)
		}
		return goretry.RetryableError(err)
	})

	switch {
	case err == nil:
		res.Outcome = Success
	case aborted:
		res.Outcome = Aborted
		res.Err = err
	case ctx.Err() != nil:
		res.Outcome = Cancelled
		res.Err = err
	default:
		res.Outcome = Exhausted
		res.Err = err
	}
	return res
}
