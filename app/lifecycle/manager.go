// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package lifecycle provides a life cycle manager abstracting the starting and stopping
// of processes by registered start or stop hooks.
//
// The following features are supported:
//   - Start hooks can either be called synchronously or asynchronously.
//   - Stop hooks are synchronous and use a shutdown context with a timeout.
//   - Ordering of start and stop hooks.
//   - Any error from start hooks immediately triggers graceful shutdown.
//   - Closing the application context triggers graceful shutdown.
package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/z"
)

const stopTimeout = time.Second * 10

// Manager manages process life cycle by registered start and stop hooks.
type Manager struct {
	mu         sync.Mutex
	started    bool
	startHooks []hook
	stopHooks  []hook
}

// RegisterStart registers a start hook. The type defines whether it is sync or async and which context is used.
// The order defines the order in which hooks are called.
func (m *Manager) RegisterStart(typ HookStartType, order OrderStart, fn IHookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		panic("lifecycle already started")
	}

	m.startHooks = append(m.startHooks, hook{
		Label:     order.String(),
		Order:     int(order),
		StartType: typ,
		Func:      fn,
	})
}

// RegisterStop registers a synchronous stop hook that will be called with the shutdown context that may timeout.
func (m *Manager) RegisterStop(order OrderStop, fn IHookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		panic("lifecycle already started")
	}

	m.stopHooks = append(m.stopHooks, hook{
		Label: order.String(),
		Order: int(order),
		Func:  fn,
	})
}

// Run the lifecycle; start all hooks, wait for shutdown, stop all hooks.
func (m *Manager) Run(appCtx context.Context) error {
	m.mu.Lock()

	m.started = true
	startHooks := append([]hook(nil), m.startHooks...)
	stopHooks := append([]hook(nil), m.stopHooks...)

	m.mu.Unlock()

	sort.Slice(startHooks, func(i, j int) bool {
		return startHooks[i].Order < startHooks[j].Order
	})
	sort.Slice(stopHooks, func(i, j int) bool {
		return stopHooks[i].Order < stopHooks[j].Order
	})

	return runHooks(appCtx, startHooks, stopHooks)
}

// runHooks starts and stops all the provided hooks.
func runHooks(appCtx context.Context, startHooks []hook, stopHooks []hook) error {
	// Collect any first error, to return at the end.
	firstErr := make(chan error, 1)
	cacheErr := func(err error) {
		select {
		case firstErr <- err:
		default: // Some other error already first.
		}
	}

	// startAppCtx is cancelled when the app is shutdown or when starting a hook fails.
	startAppCtx, cancel := context.WithCancel(appCtx)
	defer cancel()

	// backgroundCtx is never closed, it is provided to SyncBackground and AsyncBackground
	// hooks, they are explicitly stopped.
	backgroundCtx := log.WithTopic(context.Background(), "app-start")

	if err := startAllHooks(startAppCtx, backgroundCtx, startHooks, cancel, cacheErr); err != nil {
		return err
	}

	// Wait for shutdown or hook start failure.
	<-startAppCtx.Done()

	if appCtx.Err() != nil {
		log.Info(appCtx, "Shutdown signal detected")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	stopCtx = log.WithTopic(stopCtx, "app-stop")
	log.Info(stopCtx, "Shutting down gracefully")

	stopAllHooks(stopCtx, stopHooks, cancel, cacheErr)

	cacheErr(nil) // Ensure there is something in firstErr.

	return <-firstErr
}

// startHook starts a hook, blocking until it returns.
func startHook(ctx context.Context, hook hook, cancel context.CancelFunc, cacheErr func(err error)) {
	err := hook.Func.Call(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		cacheErr(errors.Wrap(err, "start hook", z.Str("hook", hook.Label)))
		cancel()
	}
}

// startAllHooks starts all hooks from the hook collection.
func startAllHooks(
	startAppCtx context.Context,
	backgroundCtx context.Context,
	startHooks []hook,
	cancel context.CancelFunc,
	cacheErr func(err error),
) error {
	for _, h := range startHooks {
		if startAppCtx.Err() != nil {
			return nil //nolint:nilerr // Just return when ctx closed.
		}

		switch h.StartType {
		case AsyncAppCtx:
			go func(h hook) {
				startHook(startAppCtx, h, cancel, cacheErr)
			}(h)
		case SyncBackground:
			startHook(backgroundCtx, h, cancel, cacheErr)
		case AsyncBackground:
			go func(h hook) {
				startHook(backgroundCtx, h, cancel, cacheErr)
			}(h)
		default:
			return errors.New("unexpected hook type", z.Any("type", h.StartType))
		}
	}

	return nil
}

// stopHook stops a hook, blocking until it returns.
func stopHook(stopCtx context.Context, hook hook, cancel context.CancelFunc, cacheErr func(err error)) {
	err := hook.Func.Call(stopCtx)
	if errors.Is(stopCtx.Err(), context.DeadlineExceeded) {
		cacheErr(errors.New("shutdown timeout", z.Str("hook", hook.Label)))
	} else if err != nil && !errors.Is(err, context.Canceled) {
		cacheErr(errors.Wrap(err, "stop hook", z.Str("hook", hook.Label)))
		cancel() // Cancel the graceful stop context.
	}
}

// stopAllHooks stops all hooks from the hooks collection.
func stopAllHooks(stopCtx context.Context, stopHooks []hook, cancel context.CancelFunc, cacheErr func(err error)) {
	for _, hook := range stopHooks {
		if stopCtx.Err() != nil {
			break
		}

		stopHook(stopCtx, hook, cancel, cacheErr)
	}
}
