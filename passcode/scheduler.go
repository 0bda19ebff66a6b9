// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/pool"
)

// Scheduler owns the debounce state deciding when accumulated mutations are
// worth persisting and broadcasting. A request inside the debounce window of
// the previous one is suppressed; an accepted request schedules its task to
// execute on the worker pool after the window elapses, so a burst of
// mutations coalesces into a single write and a single broadcast that observe
// the latest state at execution time.
type Scheduler struct {
	clock clockwork.Clock
	pool  *pool.Pool

	dumpInterval      time.Duration
	broadcastInterval time.Duration

	dumpFn      pool.Task
	broadcastFn pool.Task

	mu            sync.Mutex
	lastDump      time.Time
	lastBroadcast time.Time
}

// NewScheduler returns a new debounce scheduler executing dumpFn and
// broadcastFn on the provided pool.
func NewScheduler(p *pool.Pool, dumpInterval, broadcastInterval time.Duration, dumpFn, broadcastFn pool.Task) *Scheduler {
	return &Scheduler{
		clock:             clockwork.NewRealClock(),
		pool:              p,
		dumpInterval:      dumpInterval,
		broadcastInterval: broadcastInterval,
		dumpFn:            dumpFn,
		broadcastFn:       broadcastFn,
	}
}

// NewSchedulerForT returns a new scheduler for testing supporting a fake clock.
func NewSchedulerForT(t *testing.T, clock clockwork.Clock, p *pool.Pool,
	dumpInterval, broadcastInterval time.Duration, dumpFn, broadcastFn pool.Task,
) *Scheduler {
	t.Helper()

	s := NewScheduler(p, dumpInterval, broadcastInterval, dumpFn, broadcastFn)
	s.clock = clock

	return s
}

// ShouldDump returns true if a dump requested at now would be scheduled
// rather than suppressed.
func (s *Scheduler) ShouldDump(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return shouldSchedule(now, s.lastDump, s.dumpInterval)
}

// ShouldBroadcast returns true if a broadcast requested at now would be
// scheduled rather than suppressed.
func (s *Scheduler) ShouldBroadcast(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return shouldSchedule(now, s.lastBroadcast, s.broadcastInterval)
}

// RequestDump schedules a snapshot dump unless one was already scheduled
// within the debounce window.
func (s *Scheduler) RequestDump(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	if !shouldSchedule(now, s.lastDump, s.dumpInterval) {
		s.mu.Unlock()
		log.Debug(ctx, "Dump suppressed by debounce")

		return
	}
	s.lastDump = now
	s.mu.Unlock()

	log.Debug(ctx, "Dump scheduled")
	s.clock.AfterFunc(s.dumpInterval, func() {
		s.pool.Submit(ctx, s.dumpFn)
	})
}

// RequestBroadcast schedules a broadcast pass unless one was already
// scheduled within the debounce window. Content equality of consecutive
// consensus views is further checked by the broadcast itself.
func (s *Scheduler) RequestBroadcast(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	if !shouldSchedule(now, s.lastBroadcast, s.broadcastInterval) {
		s.mu.Unlock()
		log.Debug(ctx, "Broadcast suppressed by debounce")

		return
	}
	s.lastBroadcast = now
	s.mu.Unlock()

	log.Debug(ctx, "Broadcast scheduled")
	s.clock.AfterFunc(s.broadcastInterval, func() {
		s.pool.Submit(ctx, s.broadcastFn)
	})
}

// shouldSchedule is the pure debounce decision: schedule if nothing was
// scheduled yet or the window has fully elapsed since the last scheduling.
func shouldSchedule(now time.Time, last time.Time, window time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= window
}
