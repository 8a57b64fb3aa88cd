//go:build !tinygo

package valve

import "sync"

// critical serializes the execution tiers. Off the microcontroller the tiers
// are goroutines, so a mutex stands in for disabling interrupts.
type critical struct {
	mu sync.Mutex
}

type criticalState struct{}

func (c *critical) enter() criticalState {
	c.mu.Lock()
	return criticalState{}
}

func (c *critical) exit(criticalState) {
	c.mu.Unlock()
}
