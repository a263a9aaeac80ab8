package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lkhag/procsync/internal/config"
	"github.com/Lkhag/procsync/internal/history"
	"github.com/Lkhag/procsync/internal/pool"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pool runs",
	Long:  `Prints recently recorded runs as JSON, newest first. Use --id to fetch one run with its per-task breakdown.`,
	RunE:  listRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsCmd.Flags().String("id", "", "fetch a single run by its id")
	rootCmd.AddCommand(runsCmd)
}

// runJSON is the output shape for one run.
type runJSON struct {
	ID        string     `json:"id"`
	TaskCount int        `json:"task_count"`
	Speed     float64    `json:"speed"`
	Priority  string     `json:"priority"`
	Outcome   string     `json:"outcome"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	Tasks     []taskJSON `json:"tasks,omitempty"`
}

type taskJSON struct {
	ID         int    `json:"id"`
	State      string `json:"state"`
	Progress   int    `json:"progress"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

func toRunJSON(run pool.RunResult) runJSON {
	out := runJSON{
		ID:        run.RunID,
		TaskCount: run.Count,
		Speed:     run.Speed,
		Priority:  run.Priority.String(),
		Outcome:   run.Outcome,
		StartedAt: run.StartedAt,
		EndedAt:   run.EndedAt,
	}
	for _, task := range run.Tasks {
		out.Tasks = append(out.Tasks, taskJSON{
			ID:         task.ID,
			State:      task.State.String(),
			Progress:   task.Progress,
			DurationMs: task.Duration.Milliseconds(),
		})
	}
	return out
}

func listRuns(cmd *cobra.Command, args []string) error {
	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = config.DefaultHistoryPath()
	}
	if _, err := os.Stat(historyPath); err != nil {
		return fmt.Errorf("no run history at %s", historyPath)
	}

	db, err := history.NewDB(historyPath)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer db.Close()
	svc := history.NewService(history.NewRunRepository(db))

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	if id, _ := cmd.Flags().GetString("id"); id != "" {
		run, err := svc.GetRun(id)
		if err != nil {
			return err
		}
		return encoder.Encode(toRunJSON(run))
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := svc.ListRecent(limit)
	if err != nil {
		return err
	}

	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunJSON(run))
	}
	return encoder.Encode(out)
}
