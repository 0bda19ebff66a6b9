// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package version provides the release version of the codebase.
package version

import (
	"context"
	"runtime/debug"

	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/z"
)

// Version is the release version of the codebase.
// Usually overridden by tag names when building binaries.
const Version = "v0.3.1"

// GitCommit returns the git commit hash and timestamp from build info.
func GitCommit() (hash string, timestamp string) {
	hash, timestamp = "unknown", "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return hash, timestamp
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			hash = s.Value[:7]
		} else if s.Key == "vcs.time" {
			timestamp = s.Value
		}
	}

	return hash, timestamp
}

// LogVersion logs passbot version information along with the provided message.
func LogVersion(ctx context.Context, msg string) {
	gitHash, gitTimestamp := GitCommit()
	log.Info(ctx, msg,
		z.Str("version", Version),
		z.Str("git_commit_hash", gitHash),
		z.Str("git_commit_time", gitTimestamp),
	)
}
