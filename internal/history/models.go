package history

import (
	"time"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/pool"
	"github.com/Lkhag/procsync/internal/priority"
)

// RunModel represents a database row for the runs table. Times are
// stored as Unix timestamps.
type RunModel struct {
	ID         int64
	GUID       string
	Generation int64
	TaskCount  int
	Speed      float64
	Priority   string
	Outcome    string
	StartedAt  int64
	EndedAt    int64
}

// TaskModel represents a database row for the run_tasks table.
type TaskModel struct {
	ID         int64
	RunID      int64
	TaskID     int
	State      string
	Progress   int
	DurationMs int64
}

func toRunModel(run pool.RunResult) RunModel {
	return RunModel{
		GUID:       run.RunID,
		Generation: int64(run.Generation),
		TaskCount:  run.Count,
		Speed:      run.Speed,
		Priority:   run.Priority.String(),
		Outcome:    run.Outcome,
		StartedAt:  run.StartedAt.Unix(),
		EndedAt:    run.EndedAt.Unix(),
	}
}

func toTaskModel(view pool.TaskView) TaskModel {
	return TaskModel{
		TaskID:     view.ID,
		State:      view.State.String(),
		Progress:   view.Progress,
		DurationMs: view.Duration.Milliseconds(),
	}
}

func (m RunModel) toResult(tasks []TaskModel) pool.RunResult {
	prio, err := priority.Parse(m.Priority)
	if err != nil {
		prio = priority.Normal
	}
	run := pool.RunResult{
		RunID:      m.GUID,
		Generation: int(m.Generation),
		Count:      m.TaskCount,
		Speed:      m.Speed,
		Priority:   prio,
		Outcome:    m.Outcome,
		StartedAt:  time.Unix(m.StartedAt, 0),
		EndedAt:    time.Unix(m.EndedAt, 0),
	}
	for _, task := range tasks {
		run.Tasks = append(run.Tasks, pool.TaskView{
			ID:       task.TaskID,
			State:    parseState(task.State),
			Progress: task.Progress,
			Duration: time.Duration(task.DurationMs) * time.Millisecond,
		})
	}
	return run
}

func parseState(s string) events.TaskState {
	for _, state := range []events.TaskState{
		events.StateStarting, events.StateRunning, events.StatePaused,
		events.StateCompleted, events.StateTerminated,
	} {
		if state.String() == s {
			return state
		}
	}
	return events.StateTerminated
}
