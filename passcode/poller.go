// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ingressfs/passbot/app/expbackoff"
	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/pool"
	"github.com/ingressfs/passbot/app/z"
)

// Poller drives the inbound side of the pipeline: it long-polls the messenger
// for update batches and submits each update to the worker pool for handling.
// Transport failures are logged and retried with backoff, keeping the offset
// unchanged so redelivery is at-least-once.
type Poller struct {
	msgr     Messenger
	pool     *pool.Pool
	handle   func(context.Context, Update)
	interval time.Duration
	clock    clockwork.Clock
	quit     chan struct{}
}

// NewPoller returns a new unstarted poller submitting updates to handle via the pool.
func NewPoller(msgr Messenger, p *pool.Pool, handle func(context.Context, Update), interval time.Duration) *Poller {
	return &Poller{
		msgr:     msgr,
		pool:     p,
		handle:   handle,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		quit:     make(chan struct{}),
	}
}

// NewPollerForT returns a new poller for testing supporting a fake clock.
func NewPollerForT(t *testing.T, clock clockwork.Clock, msgr Messenger, p *pool.Pool,
	handle func(context.Context, Update), interval time.Duration,
) *Poller {
	t.Helper()

	poller := NewPoller(msgr, p, handle, interval)
	poller.clock = clock

	return poller
}

// Run blocks and polls for updates until Stop is called.
// No failure is fatal; the loop continues indefinitely.
func (p *Poller) Run() error {
	ctx, cancel := context.WithCancel(log.WithTopic(context.Background(), "poller"))
	defer cancel()

	go func() {
		<-p.quit
		cancel()
	}()

	backoff, reset := expbackoff.NewWithReset(ctx, expbackoff.WithFastConfig())

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	var offset int64
	for {
		select {
		case <-p.quit:
			return nil
		default:
		}

		updates, err := p.msgr.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			pollErrorCounter.Inc()
			log.Error(ctx, "Poll updates failed", err, z.I64("offset", offset))
			backoff() // Retry with unchanged offset.

			continue
		}
		reset()

		for _, update := range updates {
			if update.ID >= offset {
				offset = update.ID + 1
			}

			u := update
			p.pool.Submit(ctx, func(ctx context.Context) {
				p.handle(ctx, u)
			})
		}

		select {
		case <-p.quit:
			return nil
		case <-ticker.Chan():
		}
	}
}

// Stop stops the poller.
func (p *Poller) Stop() {
	close(p.quit)
}
