// Package metrics exposes pool and sampler state as Prometheus
// collectors.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/pool"
)

// Exporter holds the collectors and updates them from snapshots.
type Exporter struct {
	registry *prometheus.Registry

	tasksByState  *prometheus.GaugeVec
	poolRunning   prometheus.Gauge
	poolPaused    prometheus.Gauge
	taskProgress  *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
	eventsDrained prometheus.Counter
	samplesTotal  prometheus.Counter
	systemCPU     prometheus.Gauge
	systemMemory  prometheus.Gauge
	systemDisk    prometheus.Gauge

	lastDrained int64
}

// NewExporter creates the collectors and registers them on registry.
// A nil registry gets a fresh one.
func NewExporter(registry *prometheus.Registry) (*Exporter, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{
		registry: registry,
		tasksByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "tasks",
			Help:      "Number of tasks in each lifecycle state.",
		}, []string{"state"}),
		poolRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "pool_running",
			Help:      "Whether a task pool run is active (1) or not (0).",
		}),
		poolPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "pool_paused",
			Help:      "Whether the active pool is paused (1) or not (0).",
		}),
		taskProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "task_progress",
			Help:      "Per-task progress from 0 to 100.",
		}, []string{"task"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procsync",
			Name:      "runs_total",
			Help:      "Finished pool runs by outcome.",
		}, []string{"outcome"}),
		eventsDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procsync",
			Name:      "events_drained_total",
			Help:      "Worker events consumed by the reconcile loop.",
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procsync",
			Name:      "system_samples_total",
			Help:      "System utilization samples collected.",
		}),
		systemCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "system_cpu_percent",
			Help:      "Most recent CPU utilization sample.",
		}),
		systemMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "system_memory_percent",
			Help:      "Most recent memory utilization sample.",
		}),
		systemDisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procsync",
			Name:      "system_disk_percent",
			Help:      "Most recent disk utilization sample.",
		}),
	}

	collectors := []prometheus.Collector{
		e.tasksByState, e.poolRunning, e.poolPaused, e.taskProgress,
		e.runsTotal, e.eventsDrained, e.samplesTotal,
		e.systemCPU, e.systemMemory, e.systemDisk,
	}
	for _, c := range collectors {
		if err := registerCollector(registry, c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// registerCollector registers c, tolerating duplicate registration so
// exporters can be rebuilt against a shared registry.
func registerCollector(registry *prometheus.Registry, c prometheus.Collector) error {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

// Registry returns the registry backing the exporter, for serving
// via promhttp.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// ObserveSnapshot updates the pool gauges from a reconciled snapshot.
func (e *Exporter) ObserveSnapshot(snap pool.Snapshot) {
	e.tasksByState.Reset()
	for state, n := range snap.CountByState() {
		e.tasksByState.WithLabelValues(state.String()).Set(float64(n))
	}

	e.poolRunning.Set(boolGauge(snap.Running))
	e.poolPaused.Set(boolGauge(snap.Paused))

	e.taskProgress.Reset()
	for _, task := range snap.Tasks {
		e.taskProgress.WithLabelValues(fmt.Sprintf("%d", task.ID)).Set(float64(task.Progress))
	}
}

// ObserveDrained advances the drained-events counter to total.
// total is cumulative, so only the delta is added.
func (e *Exporter) ObserveDrained(total int64) {
	if delta := total - e.lastDrained; delta > 0 {
		e.eventsDrained.Add(float64(delta))
		e.lastDrained = total
	}
}

// ObserveRun counts a finished run under its outcome label.
func (e *Exporter) ObserveRun(run pool.RunResult) {
	e.runsTotal.WithLabelValues(run.Outcome).Inc()
}

// ObserveSample updates the system utilization gauges.
func (e *Exporter) ObserveSample(sample events.Sample) {
	e.samplesTotal.Inc()
	e.systemCPU.Set(sample.CPUPct)
	e.systemMemory.Set(sample.MemPct)
	e.systemDisk.Set(sample.DiskPct)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
