package pool

import "sync"

// Flag is a level-triggered boolean shared between the controller and
// every task of one generation. Its current value, not its transition
// history, governs behavior. Waiters block on a notification channel
// that is closed on the next transition instead of busy-polling.
type Flag struct {
	mu      sync.Mutex
	set     bool
	changed chan struct{}
}

// NewFlag returns a cleared flag.
func NewFlag() *Flag {
	return &Flag{changed: make(chan struct{})}
}

// Set raises the flag. No-op if already set.
func (f *Flag) Set() { f.transition(true) }

// Clear lowers the flag. No-op if already clear.
func (f *Flag) Clear() { f.transition(false) }

// Toggle flips the flag and returns the new value.
func (f *Flag) Toggle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = !f.set
	close(f.changed)
	f.changed = make(chan struct{})
	return f.set
}

func (f *Flag) transition(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set == v {
		return
	}
	f.set = v
	close(f.changed)
	f.changed = make(chan struct{})
}

// IsSet returns the current value.
func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// State returns the current value together with a channel that is
// closed on the next transition. The pair is taken atomically, so a
// waiter that sees a stale value is guaranteed a wakeup.
func (f *Flag) State() (bool, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set, f.changed
}

// Signals carries the shared pause and stop flags of one generation.
// The controller owns the Signals; tasks hold only non-owning
// references, so a new generation can never observe a prior
// generation's flags. The two flags are independent: Stop may be set
// while Pause is set.
type Signals struct {
	Pause *Flag
	Stop  *Flag
}

// NewSignals returns a fresh pair of cleared flags.
func NewSignals() *Signals {
	return &Signals{Pause: NewFlag(), Stop: NewFlag()}
}
