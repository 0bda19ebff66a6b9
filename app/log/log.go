// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package log provides global logging functions to be used throughout the passbot app.
// It supports contextual logging via WithCtx and structured logging and structured errors
// via z.Field.
package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/z"
)

type ctxKey struct{}

// WithCtx returns a copy of the context with which the logging fields are associated.
// Usage:
//
//	ctx := log.WithCtx(ctx, z.Int("portal", 3))
//	...
//	log.Info(ctx, "Report added") // Will contain field: portal=3
func WithCtx(ctx context.Context, fields ...z.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, append(fields, fieldsFromCtx(ctx)...))
}

// WithTopic is a convenience function that adds the topic
// contextual logging field to the returned child context.
func WithTopic(ctx context.Context, component string) context.Context {
	return WithCtx(ctx, z.Str("topic", component))
}

func fieldsFromCtx(ctx context.Context) []z.Field {
	resp, _ := ctx.Value(ctxKey{}).([]z.Field)
	return resp
}

// Debug logs the message and fields (incl fields in the context) at Debug level.
// Debug should be used for most logging.
func Debug(ctx context.Context, msg string, fields ...z.Field) {
	logger.Debug(msg, unwrapDedup(ctx, fields...)...)
}

// Info logs the message and fields (incl fields in the context) at Info level.
// Info should only be used for high level important events.
func Info(ctx context.Context, msg string, fields ...z.Field) {
	logger.Info(msg, unwrapDedup(ctx, fields...)...)
}

// Warn wraps err with msg and fields and logs it (incl fields in the context) at Warn level.
// Nil err is supported and results in similar behaviour to Info, just at Warn level.
// Warn should only be used when a problem is encountered that *does not* require any action to be taken.
func Warn(ctx context.Context, msg string, err error, fields ...z.Field) {
	if err == nil {
		logger.Warn(msg, unwrapDedup(ctx, fields...)...)
		return
	}

	err = errors.SkipWrap(err, msg, 2, fields...)
	logger.Warn(err.Error(), unwrapDedup(ctx, errFields(err))...)
}

// Error wraps err with msg and fields and logs it (incl fields in the context) at Error level.
// Nil err is supported and results in similar behaviour to Info, just at Error level.
// Error should only be used when a problem is encountered that *does* require action to be taken.
func Error(ctx context.Context, msg string, err error, fields ...z.Field) {
	if err == nil {
		logger.Error(msg, unwrapDedup(ctx, fields...)...)
		return
	}

	err = errors.SkipWrap(err, msg, 2, fields...)
	logger.Error(err.Error(), unwrapDedup(ctx, errFields(err))...)
}

// unwrapDedup returns the wrapped zap fields from the slice and from the context.
// Duplicate fields are dropped.
func unwrapDedup(ctx context.Context, fields ...z.Field) []zap.Field {
	var (
		resp []zap.Field
		dups = make(map[string]bool)
	)

	adder := func(f zap.Field) {
		if dups[f.Key] {
			return
		}
		dups[f.Key] = true
		resp = append(resp, f)
	}

	for _, field := range fields {
		field(adder)
	}

	for _, field := range fieldsFromCtx(ctx) {
		field(adder)
	}

	return resp
}

// errFields is similar to z.Err and returns the structured error fields and
// stack trace but without the error message. It avoids duplication of the error message
// since it is used as the main log message in Error above.
func errFields(err error) z.Field {
	type structErr interface {
		Fields() []z.Field
		Stack() zap.Field
	}

	// Using cast instead of errors.As since no other wrapping library
	// is used and this avoids exporting the structured error type.
	ferr, ok := err.(structErr) //nolint:errorlint
	if !ok {
		return func(add func(zap.Field)) {}
	}

	return func(add func(zap.Field)) {
		add(ferr.Stack())

		for _, field := range ferr.Fields() {
			field(add)
		}
	}
}
