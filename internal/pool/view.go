package pool

import (
	"time"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/priority"
)

// TaskView is the reconciled per-task record the observer renders.
type TaskView struct {
	ID       int
	State    events.TaskState
	Progress int
	Speed    float64
	Priority priority.Level
	// Duration is zero until the task completes.
	Duration time.Duration
}

// Snapshot is a point-in-time copy of the reconciled view, published to
// the snapshot broker after every reconcile tick.
type Snapshot struct {
	Generation int
	RunID      string
	Paused     bool
	Running    bool
	Tasks      []TaskView
	TakenAt    time.Time
}

// AllTerminal reports whether every task has reached Completed or
// Terminated. True for an empty snapshot.
func (s Snapshot) AllTerminal() bool {
	for _, t := range s.Tasks {
		if !t.State.IsTerminal() {
			return false
		}
	}
	return true
}

// CountByState tallies tasks per state, for metrics and summaries.
func (s Snapshot) CountByState() map[events.TaskState]int {
	counts := make(map[events.TaskState]int)
	for _, t := range s.Tasks {
		counts[t.State]++
	}
	return counts
}

// RunResult summarizes one finished generation for persistence.
type RunResult struct {
	RunID      string
	Generation int
	Count      int
	Speed      float64
	Priority   priority.Level
	// Outcome is "completed" when every task finished naturally,
	// "stopped" otherwise.
	Outcome   string
	StartedAt time.Time
	EndedAt   time.Time
	Tasks     []TaskView
}

// Recorder persists finished runs. Implementations must tolerate being
// called from the controller's lock-free finalization path; errors are
// logged, never fatal.
type Recorder interface {
	RecordRun(run RunResult) error
}
