// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package cmd implements passbot's command-line interface.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ingressfs/passbot/app"
	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/log"
)

const (
	// The name of our config file, without the file extension because
	// viper supports many different config file languages.
	defaultConfigFilename = "passbot"

	// The environment variable prefix of all environment variables bound to our command line flags.
	envPrefix = "passbot"
)

// New returns a new root cobra command that handles our command line tool.
func New() *cobra.Command {
	return newRootCmd(
		newVersionCmd(),
		newRunCmd(app.Run),
	)
}

func newRootCmd(cmds ...*cobra.Command) *cobra.Command {
	root := &cobra.Command{
		Use:   "passbot",
		Short: "Passbot - crowd-sourced passcode consensus bot",
		Long:  "Passbot collects portal observations from untrusted reporters, resolves a majority consensus per portal and broadcasts the composed passcode to trusted participants.",
	}

	root.AddCommand(cmds...)

	return root
}

// bindLogFlags binds the logging config flags to the provided flag set.
func bindLogFlags(flags *pflag.FlagSet, config *log.Config) {
	flags.StringVar(&config.Format, "log-format", "console", "Log format; console, logfmt or json")
	flags.StringVar(&config.Level, "log-level", "info", "Log level; debug, info, warn or error")
}

// initializeConfig sets up the general viper config and binds the cobra flags to the viper flags.
func initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	v.SetConfigName(defaultConfigFilename)
	v.AddConfigPath(".")

	// Attempt to read the config file, gracefully ignoring errors
	// caused by a config file not being found. Return an error
	// if we cannot parse the config file.
	if err := v.ReadInConfig(); err != nil {
		var cfgError viper.ConfigFileNotFoundError
		if ok := errors.As(err, &cfgError); !ok {
			return errors.Wrap(err, "read config")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// bindFlags binds each cobra flag to its associated viper configuration (config file and environment variable).
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Cobra provided flags take priority.
		if f.Changed {
			return
		}

		if !v.IsSet(f.Name) {
			return
		}

		val := v.Get(f.Name)
		if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
			lastErr = errors.Wrap(err, "set flag from config")
		}
	})

	return lastErr
}
