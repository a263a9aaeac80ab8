package pool

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/priority"
)

// workTarget is the progress value at which a task completes.
const workTarget = 100

// stopPollInterval bounds how long a paused task can go without
// re-checking the stop flag (>=10 Hz). The notification channels make
// this a safety net rather than the primary wakeup path.
const stopPollInterval = 100 * time.Millisecond

// workKinds are the simulated work flavors, chosen uniformly per step.
var workKinds = [...]string{"cpu", "memory", "io"}

// Task is one simulated unit of work. It drives itself through
// Starting -> Running <-> Paused -> {Completed | Terminated}, emitting
// status, progress, and log events into the generation's queues. Tasks
// hold only non-owning references to the shared signals and queues.
type Task struct {
	id        int
	speed     float64
	prio      priority.Level
	baseDelay time.Duration

	signals *Signals
	statusQ *EventQueue[events.StatusEvent]
	progQ   *EventQueue[events.ProgressEvent]
	logQ    *EventQueue[events.LogEvent]
	setter  priority.Setter

	startedAt time.Time
}

func newTask(id int, speed float64, prio priority.Level, baseDelay time.Duration, sig *Signals, statusQ *EventQueue[events.StatusEvent], progQ *EventQueue[events.ProgressEvent], logQ *EventQueue[events.LogEvent], setter priority.Setter) *Task {
	return &Task{
		id:        id,
		speed:     speed,
		prio:      prio,
		baseDelay: baseDelay,
		signals:   sig,
		statusQ:   statusQ,
		progQ:     progQ,
		logQ:      logQ,
		setter:    setter,
	}
}

// run executes the task state machine until completion, stop, or forced
// reclamation via ctx. The goroutine is locked to an OS thread so the
// scheduling-priority hint lands on a dedicated thread, making the
// tasks true parallel units rather than cooperative ones.
func (t *Task) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t.startedAt = time.Now()
	t.emitStatus(events.StateRunning, 0)
	t.logf("task %d started (priority: %s, speed: %gx)", t.id, t.prio, t.speed)

	// Priority application is best-effort: failure is logged and the
	// task continues at default scheduling.
	if err := t.setter.Apply(t.prio); err != nil {
		t.logf("task %d priority setting failed: %v", t.id, err)
	}

	progress := 0
	for progress < workTarget && !t.signals.Stop.IsSet() {
		if t.signals.Pause.IsSet() {
			if !t.awaitResume(ctx) {
				return
			}
		}

		kind := t.simulateWork()
		t.logf("task %d performing %s work", t.id, kind)

		if !t.sleep(ctx, t.stepDelay()) {
			return // forced reclamation
		}
		if t.signals.Stop.IsSet() {
			break
		}
		progress++
		t.progQ.Push(events.ProgressEvent{TaskID: t.id, Progress: progress})
	}

	if t.signals.Stop.IsSet() {
		// The controller's Stop path is authoritative for terminal
		// status; emitting Terminated here would race a concurrent
		// reconcile and risk duplicate terminal events.
		return
	}

	duration := time.Since(t.startedAt)
	t.emitStatus(events.StateCompleted, duration)
	t.logf("task %d completed in %.2f seconds", t.id, duration.Seconds())
}

// awaitResume blocks while the pause flag is set, waking on pause or
// stop transitions. Returns false if the task terminated (stop while
// paused, or forced reclamation) and should exit without completing.
func (t *Task) awaitResume(ctx context.Context) bool {
	t.emitStatus(events.StatePaused, 0)
	t.logf("task %d paused", t.id)

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		stopped, stopCh := t.signals.Stop.State()
		if stopped {
			t.emitStatus(events.StateTerminated, 0)
			t.logf("task %d terminated while paused", t.id)
			return false
		}
		paused, pauseCh := t.signals.Pause.State()
		if !paused {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-pauseCh:
		case <-stopCh:
		case <-ticker.C:
		}
	}

	t.emitStatus(events.StateRunning, 0)
	t.logf("task %d resumed", t.id)
	return true
}

// sleep waits for the per-step delay, waking early if the generation is
// cancelled or the stop flag rises. Returns false only on cancellation.
func (t *Task) sleep(ctx context.Context, d time.Duration) bool {
	_, stopCh := t.signals.Stop.State()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-stopCh:
		return true
	case <-timer.C:
		return true
	}
}

// stepDelay scales the base delay by the configured speed multiplier.
func (t *Task) stepDelay() time.Duration {
	return time.Duration(float64(t.baseDelay) / t.speed)
}

// simulateWork performs one unit of cpu-, memory-, or io-bound work.
func (t *Task) simulateWork() string {
	kind := workKinds[rand.Intn(len(workKinds))]
	switch kind {
	case "cpu":
		sum := 0
		for i := 0; i < 100000; i++ {
			sum += i * i
		}
		_ = sum
	case "memory":
		buf := make([]int, 100000)
		_ = buf
	default: // io
		time.Sleep(10 * time.Millisecond)
	}
	return kind
}

func (t *Task) emitStatus(state events.TaskState, duration time.Duration) {
	t.statusQ.Push(events.StatusEvent{
		TaskID:   t.id,
		State:    state,
		Priority: t.prio,
		Duration: duration,
	})
}

func (t *Task) logf(format string, args ...any) {
	t.logQ.Push(events.LogEvent{
		Text: fmt.Sprintf(format, args...),
		Time: time.Now(),
	})
}
