// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package expbackoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/app/expbackoff"
)

func TestBackoff(t *testing.T) {
	expbackoff.SetRandFloatForT(t, func() float64 { return 0.5 }) // No jitter.

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{retries: 0, want: time.Second},
		{retries: 1, want: 1600 * time.Millisecond},
		{retries: 2, want: 2560 * time.Millisecond},
		{retries: 3, want: 4096 * time.Millisecond},
		{retries: 100, want: 120 * time.Second},
	}
	for _, test := range tests {
		require.Equal(t, test.want, expbackoff.Backoff(expbackoff.DefaultConfig, test.retries))
	}
}

func TestBackoffJitter(t *testing.T) {
	// retries=1 backs off 1.6s before jitter; jitter scales by 0.8..1.2.
	expbackoff.SetRandFloatForT(t, func() float64 { return 1 })
	require.Equal(t, 1920*time.Millisecond, expbackoff.Backoff(expbackoff.DefaultConfig, 1))

	expbackoff.SetRandFloatForT(t, func() float64 { return 0 })
	require.Equal(t, 1280*time.Millisecond, expbackoff.Backoff(expbackoff.DefaultConfig, 1))
}

func TestNewWithReset(t *testing.T) {
	var delays []time.Duration
	expbackoff.SetAfterForT(t, func(d time.Duration) <-chan time.Time {
		delays = append(delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}

		return ch
	})
	expbackoff.SetRandFloatForT(t, func() float64 { return 0.5 })

	backoff, reset := expbackoff.NewWithReset(context.Background(), expbackoff.WithFastConfig())

	backoff()
	backoff()
	backoff()
	reset()
	backoff()

	require.Equal(t, []time.Duration{
		100 * time.Millisecond,
		160 * time.Millisecond,
		256 * time.Millisecond,
		100 * time.Millisecond,
	}, delays)
}

func TestBackoffCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backoff := expbackoff.New(ctx, expbackoff.WithMaxDelay(time.Hour))

	// Returns immediately with the context cancelled.
	start := time.Now()
	backoff()
	require.Less(t, time.Since(start), time.Second)
}
