// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ingressfs/passbot/app/promauto"
)

var (
	commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "router",
		Name:      "commands_total",
		Help:      "Total number of handled commands by subcommand",
	}, []string{"command"})

	commandFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "router",
		Name:      "command_failures_total",
		Help:      "Total number of commands that resulted in the failure reply",
	})

	reportCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "store",
		Name:      "reports_total",
		Help:      "Total number of reports added to the store",
	})

	trustedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "passbot",
		Subsystem: "store",
		Name:      "trusted_reporters",
		Help:      "Current size of the trust set",
	})

	broadcastCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "broadcast",
		Name:      "broadcasts_total",
		Help:      "Total number of broadcast fan-outs performed",
	})

	broadcastSkipCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "broadcast",
		Name:      "skips_total",
		Help:      "Total number of skipped broadcasts by reason",
	}, []string{"reason"})

	dumpCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "store",
		Name:      "dumps_total",
		Help:      "Total number of snapshot writes to disk",
	})

	pollErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "passbot",
		Subsystem: "poller",
		Name:      "errors_total",
		Help:      "Total number of failed update polls",
	})
)
