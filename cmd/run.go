// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ingressfs/passbot/app"
	"github.com/ingressfs/passbot/app/log"
)

func newRunCmd(runFunc func(context.Context, app.Config) error) *cobra.Command {
	conf := app.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the passbot process",
		Long:  "Starts the long-running passbot process that polls for reporter commands, maintains the consensus store and broadcasts resolved passcodes.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return initializeConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := log.InitLogger(conf.Log); err != nil {
				return err
			}

			return runFunc(cmd.Context(), conf)
		},
	}

	bindRunFlags(cmd.Flags(), &conf)
	bindLogFlags(cmd.Flags(), &conf.Log)

	return cmd
}

func bindRunFlags(flags *pflag.FlagSet, config *app.Config) {
	flags.StringVar(&config.Token, "token", "", "Bot API token used to authenticate against the messaging platform")
	flags.StringVar(&config.AdminID, "admin", "", "Reporter ID of the bot admin; admin commands and broadcasts require it")
	flags.StringVar(&config.Keyword, "keyword", config.Keyword, "First token identifying commands addressed to this bot")
	flags.StringVar(&config.DataFile, "data-file", config.DataFile, "File path of the persisted consensus snapshot")
	flags.StringVar(&config.ImageDumpDir, "image-dump-dir", "", "Optional directory for timestamped local copies of rendered images")
	flags.StringVar(&config.BotAPIURL, "bot-api-url", "", "Optional override of the bot API base URL")
	flags.StringVar(&config.MonitoringAddr, "monitoring-address", config.MonitoringAddr, "Listening address (ip and port) for the monitoring API")
	flags.IntVar(&config.PortalCount, "portal-count", config.PortalCount, "Number of portals in the passcode grid")
	flags.IntVar(&config.MinCount, "min-count", config.MinCount, "Minimum absolute votes for a value to qualify as consensus")
	flags.Float64Var(&config.MinRate, "min-rate", config.MinRate, "Minimum proportion of votes for a value to qualify as consensus")
	flags.IntVar(&config.MinCorrect, "min-correct", config.MinCorrect, "Exclusive lower bound of correct reports before a reporter is trusted")
	flags.DurationVar(&config.DumpInterval, "dump-interval", config.DumpInterval, "Debounce window coalescing snapshot writes")
	flags.DurationVar(&config.BroadcastInterval, "broadcast-interval", config.BroadcastInterval, "Debounce window coalescing broadcasts")
	flags.DurationVar(&config.PollInterval, "poll-interval", config.PollInterval, "Pacing interval of the update poll loop")
	flags.IntVar(&config.PoolWorkers, "pool-workers", config.PoolWorkers, "Number of worker pool goroutines")
	flags.IntVar(&config.PoolQueue, "pool-queue", config.PoolQueue, "Worker pool queue capacity")
}
