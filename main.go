// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Command passbot runs the crowd-sourced passcode consensus bot.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ingressfs/passbot/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cobra.CheckErr(cmd.New().ExecuteContext(ctx))
}
