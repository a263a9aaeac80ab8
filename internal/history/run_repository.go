package history

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Lkhag/procsync/internal/pool"
)

// runColumns is the list of columns to select for run queries.
const runColumns = `id, guid, generation, task_count, speed, priority, outcome, started_at, ended_at`

// RunNotFoundError is returned when a run GUID has no matching row.
type RunNotFoundError struct {
	GUID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run not found: %s", e.GUID)
}

// RunRepository persists and retrieves finished runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a repository backed by db.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Ensure RunRepository satisfies the controller's persistence hook.
var _ pool.Recorder = (*RunRepository)(nil)

func scanRun(scanner interface{ Scan(...any) error }) (RunModel, error) {
	var model RunModel
	err := scanner.Scan(
		&model.ID, &model.GUID, &model.Generation, &model.TaskCount,
		&model.Speed, &model.Priority, &model.Outcome,
		&model.StartedAt, &model.EndedAt,
	)
	return model, err
}

// RecordRun inserts a finished run and its per-task rows in one
// transaction.
func (r *RunRepository) RecordRun(run pool.RunResult) error {
	model := toRunModel(run)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.Exec(
		`INSERT INTO runs (guid, generation, task_count, speed, priority, outcome, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		model.GUID, model.Generation, model.TaskCount, model.Speed,
		model.Priority, model.Outcome, model.StartedAt, model.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, view := range run.Tasks {
		task := toTaskModel(view)
		_, err := tx.Exec(
			`INSERT INTO run_tasks (run_id, task_id, state, progress, duration_ms)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, task.TaskID, task.State, task.Progress, task.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// FindByGUID retrieves one run and its task rows.
// Returns RunNotFoundError if no matching run exists.
func (r *RunRepository) FindByGUID(guid string) (pool.RunResult, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE guid = ?`, guid)
	model, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.RunResult{}, &RunNotFoundError{GUID: guid}
	}
	if err != nil {
		return pool.RunResult{}, fmt.Errorf("failed to find run by guid: %w", err)
	}

	tasks, err := r.tasksForRun(model.ID)
	if err != nil {
		return pool.RunResult{}, err
	}
	return model.toResult(tasks), nil
}

// ListRecent returns up to limit runs, newest first, without task rows.
func (r *RunRepository) ListRecent(limit int) ([]pool.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY ended_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []pool.RunResult
	for rows.Next() {
		model, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, model.toResult(nil))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func (r *RunRepository) tasksForRun(runID int64) ([]TaskModel, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, task_id, state, progress, duration_ms
		 FROM run_tasks WHERE run_id = ? ORDER BY task_id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskModel
	for rows.Next() {
		var task TaskModel
		err := rows.Scan(&task.ID, &task.RunID, &task.TaskID, &task.State, &task.Progress, &task.DurationMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run tasks: %w", err)
	}
	return tasks, nil
}
