// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/app"
)

func TestRunFlags(t *testing.T) {
	var conf app.Config
	cmd := newRootCmd(newRunCmd(func(_ context.Context, c app.Config) error {
		conf = c
		return nil
	}))

	cmd.SetArgs([]string{"run",
		"--token=123:abc",
		"--admin=42",
		"--keyword=/code",
		"--data-file=/tmp/state.json",
		"--portal-count=13",
		"--min-count=2",
		"--min-rate=0.6",
		"--dump-interval=3s",
		"--log-level=debug",
	})

	require.NoError(t, cmd.Execute())

	require.Equal(t, "123:abc", conf.Token)
	require.Equal(t, "42", conf.AdminID)
	require.Equal(t, "/code", conf.Keyword)
	require.Equal(t, "/tmp/state.json", conf.DataFile)
	require.Equal(t, 13, conf.PortalCount)
	require.Equal(t, 2, conf.MinCount)
	require.Equal(t, 0.6, conf.MinRate)
	require.Equal(t, 3*time.Second, conf.DumpInterval)
	require.Equal(t, "debug", conf.Log.Level)
}

func TestRunDefaults(t *testing.T) {
	var conf app.Config
	cmd := newRootCmd(newRunCmd(func(_ context.Context, c app.Config) error {
		conf = c
		return nil
	}))

	cmd.SetArgs([]string{"run", "--token=123:abc"})

	require.NoError(t, cmd.Execute())

	require.Equal(t, app.DefaultConfig().Keyword, conf.Keyword)
	require.Equal(t, app.DefaultConfig().PortalCount, conf.PortalCount)
	require.Equal(t, app.DefaultConfig().DumpInterval, conf.DumpInterval)
}

func TestRunEnvVars(t *testing.T) {
	t.Setenv("PASSBOT_TOKEN", "456:env")
	t.Setenv("PASSBOT_PORTAL_COUNT", "7")

	var conf app.Config
	cmd := newRootCmd(newRunCmd(func(_ context.Context, c app.Config) error {
		conf = c
		return nil
	}))

	// Explicit flags take priority over environment variables.
	cmd.SetArgs([]string{"run", "--portal-count=9"})

	require.NoError(t, cmd.Execute())

	require.Equal(t, "456:env", conf.Token)
	require.Equal(t, 9, conf.PortalCount)
}

func TestRunRejectsArgs(t *testing.T) {
	cmd := newRootCmd(newRunCmd(func(context.Context, app.Config) error {
		return nil
	}))
	cmd.SetArgs([]string{"run", "unexpected"})

	require.Error(t, cmd.Execute())
}
