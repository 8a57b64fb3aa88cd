package valve

import (
	"fmt"
	"sync"
	"time"
)

type channelState struct {
	open, close bool
}

// fakeHardware records every output change and serves scripted samples.
type fakeHardware struct {
	mu sync.Mutex

	channels   [NumAxes + 1]channelState
	armedAxis  uint8
	armedDir   Direction
	waits      int
	syncFails  bool
	onWait     func()
	current    []int16
	currentErr error
	bemf       []uint16
	bemfErr    error
	bemfAxis   uint8
}

// WaitCycleEnd runs onWait once, outside the lock, to inject events that
// arrive while the driver waits for the cycle end.
func (f *fakeHardware) WaitCycleEnd(time.Duration) bool {
	f.mu.Lock()
	f.waits++
	hook := f.onWait
	f.onWait = nil
	ok := !f.syncFails
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ok
}

func (f *fakeHardware) SetChannels(axis uint8, open, close bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[axis] = channelState{open, close}
}

func (f *fakeHardware) ArmSampling(axis uint8, dir Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armedAxis, f.armedDir = axis, dir
}

func (f *fakeHardware) DisarmSampling() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armedAxis, f.armedDir = 0, Stop
}

func (f *fakeHardware) ReadCurrent() (int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return 0, f.currentErr
	}
	if len(f.current) == 0 {
		return 0, nil
	}
	v := f.current[0]
	if len(f.current) > 1 {
		f.current = f.current[1:]
	}
	return v, nil
}

func (f *fakeHardware) ReadBackEmf(axis uint8) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bemfAxis = axis
	if f.bemfErr != nil {
		return 0, f.bemfErr
	}
	if len(f.bemf) == 0 {
		return 0, nil
	}
	v := f.bemf[0]
	if len(f.bemf) > 1 {
		f.bemf = f.bemf[1:]
	}
	return v, nil
}

// driven lists the axes with at least one channel enabled.
func (f *fakeHardware) driven() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint8
	for a := uint8(1); a <= NumAxes; a++ {
		if f.channels[a].open || f.channels[a].close {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeHardware) channel(axis uint8) channelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[axis]
}

func (f *fakeHardware) armed() (uint8, Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armedAxis, f.armedDir
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}
