package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/pool"
)

func TestObserveSnapshotUpdatesGauges(t *testing.T) {
	e, err := NewExporter(nil)
	require.NoError(t, err)

	e.ObserveSnapshot(pool.Snapshot{
		Running: true,
		Paused:  true,
		Tasks: []pool.TaskView{
			{ID: 1, State: events.StateRunning, Progress: 40},
			{ID: 2, State: events.StateCompleted, Progress: 100},
		},
	})

	require.Equal(t, 1.0, testutil.ToFloat64(e.poolRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(e.poolPaused))
	require.Equal(t, 1.0, testutil.ToFloat64(e.tasksByState.WithLabelValues("running")))
	require.Equal(t, 1.0, testutil.ToFloat64(e.tasksByState.WithLabelValues("completed")))
	require.Equal(t, 40.0, testutil.ToFloat64(e.taskProgress.WithLabelValues("1")))

	// A later snapshot with fewer tasks clears stale series.
	e.ObserveSnapshot(pool.Snapshot{
		Tasks: []pool.TaskView{{ID: 2, State: events.StateCompleted, Progress: 100}},
	})
	require.Equal(t, 0.0, testutil.ToFloat64(e.poolRunning))
	require.Equal(t, 1, testutil.CollectAndCount(e.taskProgress))
}

func TestObserveDrainedAddsDeltasOnly(t *testing.T) {
	e, err := NewExporter(nil)
	require.NoError(t, err)

	e.ObserveDrained(5)
	e.ObserveDrained(5)
	e.ObserveDrained(12)
	require.Equal(t, 12.0, testutil.ToFloat64(e.eventsDrained))
}

func TestObserveRunCountsByOutcome(t *testing.T) {
	e, err := NewExporter(nil)
	require.NoError(t, err)

	e.ObserveRun(pool.RunResult{Outcome: "completed"})
	e.ObserveRun(pool.RunResult{Outcome: "stopped"})
	e.ObserveRun(pool.RunResult{Outcome: "stopped"})

	require.Equal(t, 1.0, testutil.ToFloat64(e.runsTotal.WithLabelValues("completed")))
	require.Equal(t, 2.0, testutil.ToFloat64(e.runsTotal.WithLabelValues("stopped")))
}

func TestObserveSample(t *testing.T) {
	e, err := NewExporter(nil)
	require.NoError(t, err)

	e.ObserveSample(events.Sample{CPUPct: 12.5, MemPct: 60, DiskPct: 70})
	e.ObserveSample(events.Sample{CPUPct: 15, MemPct: 61, DiskPct: 70})

	require.Equal(t, 2.0, testutil.ToFloat64(e.samplesTotal))
	require.Equal(t, 15.0, testutil.ToFloat64(e.systemCPU))
}

func TestDuplicateRegistrationTolerated(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewExporter(registry)
	require.NoError(t, err)
	_, err = NewExporter(registry)
	require.NoError(t, err)
}
