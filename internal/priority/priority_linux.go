//go:build linux

package priority

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// niceSetter adjusts the niceness of the calling thread. Workers lock
// themselves to an OS thread before calling Apply, so on Linux (where
// each thread is a separate scheduling task) the hint lands on exactly
// that worker.
type niceSetter struct{}

func hostSetter() Setter {
	return niceSetter{}
}

func (niceSetter) Apply(level Level) error {
	nice := nicenessFor(level)
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, nice); err != nil {
		return fmt.Errorf("setpriority tid=%d nice=%d: %w", tid, nice, err)
	}
	return nil
}

// nicenessFor maps the abstract levels onto niceness values. Raising
// priority above the process default needs CAP_SYS_NICE, so High maps
// to 0 rather than a negative value.
func nicenessFor(level Level) int {
	switch level {
	case Low:
		return 19
	case High:
		return 0
	default:
		return 10
	}
}
