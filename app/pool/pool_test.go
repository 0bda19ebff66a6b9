// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ingressfs/passbot/app/pool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolExecutesTasks(t *testing.T) {
	p := pool.New(4, 16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run()
	}()

	var count atomic.Int64
	ctx := context.Background()
	for range 10 {
		require.True(t, p.Submit(ctx, func(context.Context) {
			count.Add(1)
		}))
	}

	require.Eventually(t, func() bool {
		return count.Load() == 10
	}, time.Second, time.Millisecond)

	p.Stop()
	<-done
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	// No workers started: the queue fills and further submissions are dropped.
	p := pool.New(1, 2)

	ctx := context.Background()
	task := func(context.Context) {}

	require.True(t, p.Submit(ctx, task))
	require.True(t, p.Submit(ctx, task))
	require.False(t, p.Submit(ctx, task))
	require.False(t, p.Submit(ctx, task))
}

func TestPoolStopWaitsForInflight(t *testing.T) {
	p := pool.New(1, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run()
	}()

	var (
		started  = make(chan struct{})
		release  = make(chan struct{})
		finished atomic.Bool
	)
	require.True(t, p.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
		finished.Store(true)
	}))

	<-started
	p.Stop()

	// Run does not return while the task is still executing.
	select {
	case <-done:
		require.Fail(t, "pool stopped with task in flight")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	<-done
	require.True(t, finished.Load())
}

func TestPoolDoubleStartPanics(t *testing.T) {
	p := pool.New(1, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Run()
	}()

	// Wait for the first Run to mark the pool started, then expect a panic.
	require.Eventually(t, func() bool {
		var panicked bool
		func() {
			defer func() { panicked = recover() != nil }()
			_ = p.Run()
		}()

		return panicked
	}, time.Second, time.Millisecond)

	p.Stop()
	wg.Wait()
}
