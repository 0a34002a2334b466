package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// liveKinds are subscribed to on the chain db.
var liveKinds = []Kind{
	KindTip,
	KindTreasuryProposal,
	KindBounty,
	KindChildBounty,
	KindTechCommitteeProposal,
	KindMotion,
	KindProposal,
	KindReferendum,
	KindReferendumV2,
	KindReferendumV2Status,
}

// Watcher keeps the discussion db in step with the chain db. All events,
// live or replayed, are handled on the goroutine that called Run.
type Watcher struct {
	Syncer        *Syncer
	NewSubscriber func() Subscriber
	StartBlock    int
	ResetInterval time.Duration
	RestartDelay  time.Duration
	Logger        *slog.Logger
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w *Watcher) resetInterval() time.Duration {
	if w.ResetInterval <= 0 {
		return 6 * time.Hour
	}
	return w.ResetInterval
}

func (w *Watcher) restartDelay() time.Duration {
	if w.RestartDelay <= 0 {
		return 5 * time.Second
	}
	return w.RestartDelay
}

// Run resyncs, subscribes and handles events until ctx is done. Every
// ResetInterval the subscriptions are torn down, the databases resynced and
// the subscriptions restarted on a fresh client.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger().Info("connection reset scheduled", "interval", w.resetInterval())
	for {
		if err := w.Syncer.SyncAll(ctx); err != nil {
			return nil
		}

		err := w.cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			w.logger().Info("planned connection reset")
			continue
		}

		w.logger().Error("subscriptions stopped, restarting", "error", err, "delay", w.restartDelay())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.restartDelay()):
		}
	}
}

// cycle runs one subscription client until the reset timer fires (nil), the
// client stops (error) or ctx is done.
func (w *Watcher) cycle(ctx context.Context) error {
	sub := w.NewSubscriber()
	events := make(chan Event)
	stop := make(chan struct{})
	defer func() {
		close(stop)
		if err := sub.Close(); err != nil {
			w.logger().Warn("closing subscription client", "error", err)
		}
	}()

	vars := map[string]interface{}{"startBlock": w.StartBlock}
	for _, kind := range liveKinds {
		f := feeds[kind]
		_, err := sub.SubscribeRaw(f.subscriptionQuery(), vars, func(msg []byte, err error) error {
			if err != nil {
				w.logger().Error("subscription error", "kind", kind, "error", err)
				return nil
			}
			ev, ok, err := f.decodeMessage(msg)
			if err != nil {
				w.logger().Error("undecodable subscription payload", "kind", kind, "error", err)
				return nil
			}
			if !ok {
				return nil
			}
			w.logger().Debug("data received", "kind", kind, "id", ev.ID)
			select {
			case events <- ev:
			case <-stop:
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", kind)
		}
	}

	done := make(chan error, 1)
	go func() { done <- sub.Run() }()

	w.logger().Info("chain db watcher listening", "start_block", w.StartBlock)
	timer := time.NewTimer(w.resetInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			w.Syncer.process(ctx, ev)
		case <-timer.C:
			return nil
		case err := <-done:
			if err == nil {
				err = errors.New("subscriptions completed")
			}
			return errors.Wrap(err, "subscription client stopped")
		}
	}
}
