// Package events defines the event types flowing from worker tasks and
// the system sampler to the controller and observer. Keeping them in
// their own package avoids import cycles between the pool and its
// consumers.
package events

import (
	"time"

	"github.com/Lkhag/procsync/internal/priority"
)

// TaskState is the closed set of worker lifecycle states.
type TaskState int

const (
	// StateStarting is the initial state before the task goroutine runs.
	StateStarting TaskState = iota
	// StateRunning means the task is performing work units.
	StateRunning
	// StatePaused means the task is blocked on the shared pause flag.
	StatePaused
	// StateCompleted means the task reached 100% progress (terminal).
	StateCompleted
	// StateTerminated means the task was stopped before completing (terminal).
	StateTerminated
)

func (s TaskState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state admits no further transitions.
// Terminal states are sticky in the reconciled view: once recorded, no
// later event may overwrite them.
func (s TaskState) IsTerminal() bool {
	return s == StateCompleted || s == StateTerminated
}

// StatusEvent announces a task state transition.
type StatusEvent struct {
	// TaskID identifies the emitting task within its generation.
	TaskID int
	// State is the state being entered.
	State TaskState
	// Priority is the task's configured scheduling priority.
	Priority priority.Level
	// Duration is set only on Completed events.
	Duration time.Duration
}

// ProgressEvent reports a task's progress, 0..100.
type ProgressEvent struct {
	TaskID   int
	Progress int
}

// LogEvent is a free-form log line for the observer's log sink.
// Time may be zero; the controller stamps it during reconciliation.
type LogEvent struct {
	Text string
	Time time.Time
}

// Sample is one reading from the system sampler.
type Sample struct {
	CPUPct   float64
	MemPct   float64
	DiskPct  float64
	NetBytes uint64
	Time     time.Time
}
