// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package lifecycle

import "context"

// IHookFunc is the life cycle hook function interface.
// Users will mostly wrap functions using one of the types below.
type IHookFunc interface {
	Call(context.Context) error
}

// HookFunc wraps a standard hook function (context and error) as a IHookFunc.
type HookFunc func(ctx context.Context) error

func (fn HookFunc) Call(ctx context.Context) error {
	return fn(ctx)
}

// HookFuncMin wraps a minimum (no context, no error) hook function as a IHookFunc.
type HookFuncMin func()

func (fn HookFuncMin) Call(context.Context) error {
	fn()
	return nil
}

// HookFuncErr wraps an error (no context) hook function as a IHookFunc.
type HookFuncErr func() error

func (fn HookFuncErr) Call(context.Context) error {
	return fn()
}

// HookFuncCtx wraps a context (no error) hook function as a IHookFunc.
type HookFuncCtx func(ctx context.Context)

func (fn HookFuncCtx) Call(ctx context.Context) error {
	fn(ctx)
	return nil
}

// HookStartType defines the type of start hook.
type HookStartType int

const (
	// AsyncAppCtx defines a start hook that will be called asynchronously (non-blocking)
	// with the application context. Using the application context usually results in hard shutdown.
	AsyncAppCtx HookStartType = iota + 1

	// SyncBackground defines a start hook that will be called synchronously (blocking)
	// with a fresh background context. Processes that support graceful shutdown can
	// associate this with a call to RegisterStop.
	SyncBackground

	// AsyncBackground defines a start hook that will be called asynchronously (non-blocking)
	// with a fresh background context. Processes that support graceful shutdown can
	// associate this with a call to RegisterStop.
	AsyncBackground
)

// hook represents a life cycle hook; either a start or a stop.
type hook struct {
	// Order defines the order in which hooks are called.
	Order int
	// Label is a text label for errors and logging.
	Label string
	// StartType defines whether the start type is (a)synchronous and which context to use.
	StartType HookStartType
	// Func is the hook function.
	Func IHookFunc
}
