// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package lifecycle

// OrderStart defines the order hooks are started.
type OrderStart int

// OrderStop defines the order hooks are stopped.
type OrderStop int

// Global ordering of start hooks.
const (
	StartMonitoringAPI OrderStart = iota
	StartWorkerPool
	StartScheduler
	StartPoller
)

// Global ordering of stop hooks; follows dependency tree from root to leaves.
const (
	StopPoller OrderStop = iota // High level components...
	StopScheduler
	StopWorkerPool
	StopMonitoringAPI // Low level services...
)

func (s OrderStart) String() string {
	names := map[OrderStart]string{
		StartMonitoringAPI: "MonitoringAPI",
		StartWorkerPool:    "WorkerPool",
		StartScheduler:     "Scheduler",
		StartPoller:        "Poller",
	}

	return names[s]
}

func (s OrderStop) String() string {
	names := map[OrderStop]string{
		StopPoller:        "Poller",
		StopScheduler:     "Scheduler",
		StopWorkerPool:    "WorkerPool",
		StopMonitoringAPI: "MonitoringAPI",
	}

	return names[s]
}
