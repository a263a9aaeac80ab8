// Package pool implements the worker-task pool: the task state machine,
// the shared coordination signals, the per-generation event queues, and
// the controller that reconciles task events into an observable view.
package pool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/log"
	"github.com/Lkhag/procsync/internal/priority"
	"github.com/Lkhag/procsync/internal/pubsub"
	"github.com/Lkhag/procsync/internal/tracing"
)

// Task count bounds for one generation.
const (
	MinTasks = 1
	MaxTasks = 32
)

// DefaultBaseDelay is the unscaled per-step work delay.
const DefaultBaseDelay = 50 * time.Millisecond

// DefaultGracePeriod bounds how long Stop waits for tasks to exit
// voluntarily before force-reclaiming them.
const DefaultGracePeriod = 1 * time.Second

// Speeds is the enumerated set of allowed speed multipliers.
var Speeds = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10}

var (
	ErrInvalidCount    = fmt.Errorf("task count must be between %d and %d", MinTasks, MaxTasks)
	ErrInvalidSpeed    = fmt.Errorf("speed must be one of the enumerated multipliers")
	ErrInvalidPriority = fmt.Errorf("priority must be Low, Normal, or High")
)

// ValidSpeed reports whether s is one of the allowed multipliers.
func ValidSpeed(s float64) bool {
	for _, v := range Speeds {
		if v == s {
			return true
		}
	}
	return false
}

// Config holds controller configuration. Zero values select defaults.
type Config struct {
	BaseDelay   time.Duration
	GracePeriod time.Duration

	// PrioritySetter applies scheduling priority to worker threads.
	// Defaults to the platform setter selected at startup.
	PrioritySetter priority.Setter

	// Recorder, when set, receives a RunResult for every finished
	// generation. Errors are logged and ignored.
	Recorder Recorder

	// Tracer, when set, wraps each generation in a span.
	Tracer trace.Tracer

	// LogSink receives observer log lines. A fresh broker is created
	// when nil; pass a shared broker to merge streams (e.g. with the
	// system sampler's log lines).
	LogSink *pubsub.Broker[events.LogEvent]
}

// Controller owns the signals, queues, and view table of the current
// pool generation. Start/TogglePause/Stop mutate the generation;
// ReconcileTick drains task events into the view. All methods are safe
// for concurrent use, but ReconcileTick is designed to be driven from a
// single observer loop.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	generation int
	runID      string
	running    bool
	startedAt  time.Time

	signals *Signals
	statusQ *EventQueue[events.StatusEvent]
	progQ   *EventQueue[events.ProgressEvent]
	logQ    *EventQueue[events.LogEvent]

	view  []TaskView
	count int
	speed float64
	prio  priority.Level

	wg        *sync.WaitGroup
	genCancel context.CancelFunc
	span      trace.Span

	eventsDrained atomic.Int64

	snapshots *pubsub.Broker[Snapshot]
	logLines  *pubsub.Broker[events.LogEvent]
}

// New creates a controller with no live generation.
func New(cfg Config) *Controller {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.PrioritySetter == nil {
		cfg.PrioritySetter = priority.ForHost()
	}
	logLines := cfg.LogSink
	if logLines == nil {
		logLines = pubsub.NewBroker[events.LogEvent]()
	}

	return &Controller{
		cfg:       cfg,
		signals:   NewSignals(),
		statusQ:   NewEventQueue[events.StatusEvent](),
		progQ:     NewEventQueue[events.ProgressEvent](),
		logQ:      NewEventQueue[events.LogEvent](),
		snapshots: pubsub.NewBroker[Snapshot](),
		logLines:  logLines,
	}
}

// Start spins up a new generation of count tasks sharing fresh signals
// and queues. Any live generation is stopped first and allowed to
// settle, so no event can leak across generations.
func (c *Controller) Start(count int, speed float64, prio priority.Level) error {
	if count < MinTasks || count > MaxTasks {
		return ErrInvalidCount
	}
	if !ValidSpeed(speed) {
		return ErrInvalidSpeed
	}
	if !prio.Valid() {
		return ErrInvalidPriority
	}

	c.Stop()

	c.mu.Lock()
	c.generation++
	c.runID = uuid.NewString()
	c.running = true
	c.startedAt = time.Now()
	c.count = count
	c.speed = speed
	c.prio = prio

	// Fresh signals and queues every generation; tasks get non-owning
	// references only.
	c.signals = NewSignals()
	c.statusQ = NewEventQueue[events.StatusEvent]()
	c.progQ = NewEventQueue[events.ProgressEvent]()
	c.logQ = NewEventQueue[events.LogEvent]()

	genCtx, cancel := context.WithCancel(context.Background())
	c.genCancel = cancel

	c.view = make([]TaskView, count)
	for i := range c.view {
		c.view[i] = TaskView{ID: i, State: events.StateStarting, Speed: speed, Priority: prio}
	}

	if c.cfg.Tracer != nil {
		_, c.span = c.cfg.Tracer.Start(context.Background(), "pool.generation",
			trace.WithAttributes(
				attribute.String(tracing.AttrRunID, c.runID),
				attribute.Int(tracing.AttrGeneration, c.generation),
				attribute.Int(tracing.AttrTaskCount, count),
				attribute.Float64(tracing.AttrSpeed, speed),
				attribute.String(tracing.AttrPriority, prio.String()),
			))
	}

	wg := &sync.WaitGroup{}
	c.wg = wg
	for i := 0; i < count; i++ {
		t := newTask(i, speed, prio, c.cfg.BaseDelay, c.signals, c.statusQ, c.progQ, c.logQ, c.cfg.PrioritySetter)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error(log.CatPool, "Task panic recovered",
						"taskID", id,
						"panic", r,
						"stack", string(debug.Stack()))
				}
			}()
			t.run(genCtx)
		}(i)
	}

	gen := c.generation
	c.mu.Unlock()

	log.Info(log.CatPool, "Generation started",
		"generation", gen, "count", count, "speed", speed, "priority", prio)
	c.observerLog(fmt.Sprintf("started %d tasks (speed: %gx, priority: %s)", count, speed, prio))
	return nil
}

// TogglePause flips the shared pause flag and returns the new value.
// It does not wait for acknowledgment: tasks observe the flag within
// their wait latency. A no-op returning false when no generation is
// live. Two immediate calls net out to no steady-state change.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	paused := c.signals.Pause.Toggle()
	span := c.span
	c.mu.Unlock()

	if paused {
		log.Info(log.CatPool, "Pause requested")
		c.observerLog("all tasks paused")
		if span != nil {
			span.AddEvent(tracing.EventPaused)
		}
	} else {
		log.Info(log.CatPool, "Resume requested")
		c.observerLog("all tasks resumed")
		if span != nil {
			span.AddEvent(tracing.EventResumed)
		}
	}
	return paused
}

// Stop broadcasts the stop flag, waits up to the grace period for
// voluntary exit, force-reclaims survivors via generation-context
// cancellation, and leaves the view table consistent for the next
// Start: every task ends in Terminated unless Completed was already
// observed. Queued events are discarded, so a late Completed event can
// never override the Stop verdict. Idempotent; a no-op when no
// generation is live.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	signals := c.signals
	wg := c.wg
	cancel := c.genCancel
	c.mu.Unlock()

	log.Info(log.CatPool, "Stopping generation")
	c.observerLog("stopping all tasks...")
	signals.Stop.Set()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.GracePeriod):
		log.Warn(log.CatPool, "Grace period expired, force-reclaiming tasks")
		c.observerLog("grace period expired; tasks force-terminated")
	}
	cancel()

	c.mu.Lock()
	if !c.running {
		// A concurrent ReconcileTick observed every task terminal and
		// finalized the generation during the grace wait. The run is
		// already recorded; finalizing again would hand the Recorder a
		// duplicate.
		c.mu.Unlock()
		return
	}
	result := c.finalizeLocked(signals)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.finishRun(result)
	c.snapshots.Publish(pubsub.UpdatedEvent, snap)
	c.observerLog("all tasks stopped")
}

// finalizeLocked settles the generation: marks stragglers Terminated,
// clears both flags, discards queue contents, and builds the RunResult.
func (c *Controller) finalizeLocked(signals *Signals) RunResult {
	outcome := "completed"
	for i := range c.view {
		if c.view[i].State != events.StateCompleted {
			c.view[i].State = events.StateTerminated
			outcome = "stopped"
		}
	}

	signals.Pause.Clear()
	signals.Stop.Clear()

	// Drain and discard whatever the tasks still had buffered.
	c.statusQ.DrainAll()
	c.progQ.DrainAll()
	c.logQ.DrainAll()

	c.running = false
	return RunResult{
		RunID:      c.runID,
		Generation: c.generation,
		Count:      c.count,
		Speed:      c.speed,
		Priority:   c.prio,
		Outcome:    outcome,
		StartedAt:  c.startedAt,
		EndedAt:    time.Now(),
		Tasks:      append([]TaskView(nil), c.view...),
	}
}

// finishRun hands the result to the recorder and closes the span.
// Runs outside the controller lock; failures degrade to log entries.
func (c *Controller) finishRun(result RunResult) {
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.RecordRun(result); err != nil {
			log.ErrorErr(log.CatPool, "Failed to record run", err, "runID", result.RunID)
		}
	}

	c.mu.Lock()
	span := c.span
	c.span = nil
	c.mu.Unlock()
	if span != nil {
		span.SetAttributes(attribute.String(tracing.AttrOutcome, result.Outcome))
		span.End()
	}

	log.Info(log.CatPool, "Generation finished",
		"generation", result.Generation, "outcome", result.Outcome,
		"duration", result.EndedAt.Sub(result.StartedAt))
}

// ReconcileTick drains the status, progress, and log queues fully
// without blocking and folds the events into the view table. Events
// whose id falls outside the current generation's range are ignored,
// terminal states are sticky, and progress never regresses. Log events
// are timestamped if the producer did not and forwarded to the log
// sink. A snapshot is published after every tick.
func (c *Controller) ReconcileTick() {
	c.mu.Lock()

	progressEvents := c.progQ.DrainAll()
	statusEvents := c.statusQ.DrainAll()
	logEvents := c.logQ.DrainAll()
	c.eventsDrained.Add(int64(len(progressEvents) + len(statusEvents) + len(logEvents)))

	for _, ev := range progressEvents {
		if ev.TaskID < 0 || ev.TaskID >= len(c.view) {
			continue
		}
		v := &c.view[ev.TaskID]
		if v.State.IsTerminal() {
			continue
		}
		if ev.Progress > v.Progress && ev.Progress <= workTarget {
			v.Progress = ev.Progress
		}
	}

	for _, ev := range statusEvents {
		if ev.TaskID < 0 || ev.TaskID >= len(c.view) {
			continue
		}
		v := &c.view[ev.TaskID]
		if v.State.IsTerminal() {
			// First terminal transition wins; late events are dropped.
			continue
		}
		v.State = ev.State
		if ev.State == events.StateCompleted {
			v.Progress = workTarget
			v.Duration = ev.Duration
		}
	}

	// Natural completion: every task terminal with no Stop issued.
	var result RunResult
	finished := false
	if c.running && len(c.view) > 0 && allTerminal(c.view) {
		result = c.finalizeLocked(c.signals)
		if c.genCancel != nil {
			c.genCancel()
		}
		finished = true
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	now := time.Now()
	for _, ev := range logEvents {
		if ev.Time.IsZero() {
			ev.Time = now
		}
		c.logLines.Publish(pubsub.CreatedEvent, ev)
	}

	if finished {
		c.finishRun(result)
	}
	c.snapshots.Publish(pubsub.UpdatedEvent, snap)
}

func allTerminal(view []TaskView) bool {
	for i := range view {
		if !view[i].State.IsTerminal() {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the current reconciled view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	paused := false
	if c.running {
		paused = c.signals.Pause.IsSet()
	}
	return Snapshot{
		Generation: c.generation,
		RunID:      c.runID,
		Paused:     paused,
		Running:    c.running,
		Tasks:      append([]TaskView(nil), c.view...),
		TakenAt:    time.Now(),
	}
}

// Snapshots returns the broker publishing a Snapshot per reconcile tick.
func (c *Controller) Snapshots() *pubsub.Broker[Snapshot] {
	return c.snapshots
}

// LogBroker returns the observer log sink.
func (c *Controller) LogBroker() *pubsub.Broker[events.LogEvent] {
	return c.logLines
}

// EventsDrained returns the total number of events reconciled so far.
func (c *Controller) EventsDrained() int64 {
	return c.eventsDrained.Load()
}

// Generation returns the current generation id (0 before the first Start).
func (c *Controller) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Close stops any live generation and shuts down the brokers.
func (c *Controller) Close() {
	c.Stop()
	c.snapshots.Close()
	c.logLines.Close()
}

// observerLog publishes a controller-level line to the observer sink.
func (c *Controller) observerLog(text string) {
	c.logLines.Publish(pubsub.CreatedEvent, events.LogEvent{Text: text, Time: time.Now()})
}
