// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package lifecycle_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/lifecycle"
)

func TestRunOrdering(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(label string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()

			calls = append(calls, label)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	life := new(lifecycle.Manager)

	// Register out of order; the manager sorts by the order constants.
	// The last start hook triggers shutdown once everything is up.
	life.RegisterStart(lifecycle.SyncBackground, lifecycle.StartPoller, lifecycle.HookFuncMin(func() {
		record("start poller")()
		cancel()
	}))
	life.RegisterStart(lifecycle.SyncBackground, lifecycle.StartWorkerPool, lifecycle.HookFuncMin(record("start pool")))

	life.RegisterStop(lifecycle.StopWorkerPool, lifecycle.HookFuncMin(record("stop pool")))
	life.RegisterStop(lifecycle.StopPoller, lifecycle.HookFuncMin(record("stop poller")))

	require.NoError(t, life.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"start pool", "start poller", "stop poller", "stop pool"}, calls)
}

func TestStartHookError(t *testing.T) {
	life := new(lifecycle.Manager)

	var stopped bool
	life.RegisterStart(lifecycle.SyncBackground, lifecycle.StartWorkerPool, lifecycle.HookFuncErr(func() error {
		return errors.New("boom")
	}))
	life.RegisterStop(lifecycle.StopWorkerPool, lifecycle.HookFuncMin(func() {
		stopped = true
	}))

	err := life.Run(context.Background())
	require.ErrorContains(t, err, "boom")
	require.True(t, stopped)
}

func TestRegisterAfterRunPanics(t *testing.T) {
	life := new(lifecycle.Manager)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, life.Run(ctx))

	require.Panics(t, func() {
		life.RegisterStop(lifecycle.StopWorkerPool, lifecycle.HookFuncMin(func() {}))
	})
}
