package valve

import "sync/atomic"

// Timebase is a 16-bit millisecond counter. It wraps silently; the first wrap
// latches the overflow flag.
type Timebase struct {
	ms       atomic.Uint32
	overflow atomic.Bool
}

// Tick advances the counter by one millisecond.
func (t *Timebase) Tick() {
	if uint16(t.ms.Add(1)) == 0 {
		t.overflow.Store(true)
	}
}

// Now returns the current counter value.
func (t *Timebase) Now() uint16 { return uint16(t.ms.Load()) }

// Overflowed reports whether the counter has wrapped at least once.
func (t *Timebase) Overflowed() bool { return t.overflow.Load() }

// Elapsed returns the milliseconds passed since the counter read since,
// correct across one wrap.
func (t *Timebase) Elapsed(since uint16) uint16 { return t.Now() - since }
