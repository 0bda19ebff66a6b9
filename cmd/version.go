// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package cmd

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ingressfs/passbot/app/version"
)

type versionConfig struct {
	Verbose bool
}

// newVersionCmd returns the version command.
func newVersionCmd() *cobra.Command {
	var conf versionConfig

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Long:  "Output version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			runVersionCmd(cmd.OutOrStdout(), conf)
		},
	}

	bindVersionFlags(cmd.Flags(), &conf)

	return cmd
}

func bindVersionFlags(flags *pflag.FlagSet, config *versionConfig) {
	flags.BoolVar(&config.Verbose, "verbose", false, "Includes detailed module version info")
}

func runVersionCmd(out io.Writer, config versionConfig) {
	hash, timestamp := version.GitCommit()
	_, _ = fmt.Fprintf(out, "%s [git_commit_hash=%s,git_commit_time=%s]\n", version.Version, hash, timestamp)

	if !config.Verbose {
		return
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		_, _ = fmt.Fprintln(out, "Failed to gather build info")
		return
	}

	_, _ = fmt.Fprintf(out, "Package: %s\n", buildInfo.Path)
	_, _ = fmt.Fprintln(out, "Dependencies:")

	for _, dep := range buildInfo.Deps {
		for dep.Replace != nil {
			dep = dep.Replace
		}
		_, _ = fmt.Fprintf(out, "\t%v %v\n", dep.Path, dep.Version)
	}
}
