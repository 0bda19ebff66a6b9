// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package pool provides a bounded worker pool for fire-and-forget tasks.
// Submission never blocks the caller; tasks submitted while the queue is
// saturated are dropped and logged. This keeps the inbound poll loop
// responsive regardless of how slow downstream side effects are.
package pool

import (
	"context"
	"sync"

	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/z"
)

// Task is a unit of work executed by a pool worker.
type Task func(ctx context.Context)

// Pool is a bounded fire-and-forget worker pool.
type Pool struct {
	workers int
	queue   chan Task
	quit    chan struct{}

	mu      sync.Mutex
	started bool
}

// New returns a new unstarted pool with the provided number of workers and queue capacity.
func New(workers int, queueSize int) *Pool {
	return &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		quit:    make(chan struct{}),
	}
}

// Submit enqueues the task for asynchronous execution and returns true.
// It never blocks; it returns false if the queue is saturated and the task was dropped.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	select {
	case p.queue <- task:
		return true
	default:
		log.Warn(ctx, "Worker pool saturated, dropping task", nil, z.Int("queue_size", cap(p.queue)))
		return false
	}
}

// Run starts the workers and blocks until Stop is called.
// Tasks still queued when Stop is called are dropped; in-flight tasks run to completion.
func (p *Pool) Run() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		panic("pool already started")
	}
	p.started = true
	p.mu.Unlock()

	ctx := log.WithTopic(context.Background(), "pool")

	var wg sync.WaitGroup
	for i := range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerCtx := log.WithCtx(ctx, z.Int("worker", i))
			for {
				select {
				case <-p.quit:
					return
				case task := <-p.queue:
					task(workerCtx)
				}
			}
		}()
	}

	wg.Wait()

	return nil
}

// Stop signals all workers to return after their current task.
func (p *Pool) Stop() {
	close(p.quit)
}
