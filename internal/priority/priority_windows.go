//go:build windows

package priority

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// classSetter maps levels onto Windows priority classes. Windows has no
// per-thread niceness, so the class applies to the whole process.
type classSetter struct{}

func hostSetter() Setter {
	return classSetter{}
}

func (classSetter) Apply(level Level) error {
	class := classFor(level)
	if err := windows.SetPriorityClass(windows.CurrentProcess(), class); err != nil {
		return fmt.Errorf("set priority class %#x: %w", class, err)
	}
	return nil
}

func classFor(level Level) uint32 {
	switch level {
	case Low:
		return windows.IDLE_PRIORITY_CLASS
	case High:
		return windows.HIGH_PRIORITY_CLASS
	default:
		return windows.NORMAL_PRIORITY_CLASS
	}
}
