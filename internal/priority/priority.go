// Package priority exposes an abstract three-level scheduling priority
// with best-effort platform implementations. On hosts without a usable
// primitive the setter is a no-op that reports ErrUnsupported, and tasks
// continue at default scheduling.
package priority

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a closed three-level scheduling priority.
type Level int

const (
	Low Level = iota
	Normal
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "Low"
	case Normal:
		return "Normal"
	case High:
		return "High"
	default:
		return "Unknown"
	}
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	return l >= Low && l <= High
}

// Parse converts a config or flag string into a Level. Matching is
// case-insensitive.
func Parse(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "low":
		return Low, nil
	case "normal":
		return Normal, nil
	case "high":
		return High, nil
	default:
		return Normal, fmt.Errorf("unknown priority %q (want Low, Normal, or High)", s)
	}
}

// ErrUnsupported is reported when the host has no scheduling-priority
// primitive the setter can use. It is never fatal.
var ErrUnsupported = errors.New("scheduling priority not supported on this platform")

// Setter applies a scheduling priority to the calling thread or process.
// Apply is best-effort: callers log the error and continue.
type Setter interface {
	Apply(level Level) error
}

// Noop is a Setter for hosts without priority support.
type Noop struct{}

func (Noop) Apply(Level) error {
	return ErrUnsupported
}

// ForHost returns the Setter for the current platform, selected once at
// startup: niceness on Linux, priority class on Windows, Noop elsewhere.
func ForHost() Setter {
	return hostSetter()
}
