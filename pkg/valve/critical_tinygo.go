//go:build tinygo

package valve

import "runtime/interrupt"

// critical masks interrupts for the duration of a section.
type critical struct{}

type criticalState = interrupt.State

func (c *critical) enter() criticalState {
	return interrupt.Disable()
}

func (c *critical) exit(s criticalState) {
	interrupt.Restore(s)
}
