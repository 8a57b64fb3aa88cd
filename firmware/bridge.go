//go:build tinygo

package main

import (
	"machine"
	"sync"
	"time"

	"github.com/itohio/govalve/pkg/valve"
)

type sampleHandler interface {
	OnCurrentSample()
	OnBackEmfSample()
}

// bridge drives the H-bridge inputs with a software PWM and raises the
// sampling events of each cycle.
type bridge struct {
	pins [valve.NumAxes][2]machine.Pin

	mu        sync.Mutex
	enabled   [valve.NumAxes][2]bool
	armedAxis uint8
	cycle     chan struct{}
}

var _ valve.PwmOutput = (*bridge)(nil)

func newBridge(pins [valve.NumAxes][2]machine.Pin) *bridge {
	b := &bridge{pins: pins, cycle: make(chan struct{})}
	for _, p := range pins {
		for _, pin := range p {
			pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
			pin.Low()
		}
	}
	return b
}

func (b *bridge) WaitCycleEnd(timeout time.Duration) bool {
	select {
	case <-b.cycle:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *bridge) SetChannels(axis uint8, open, close bool) {
	if axis < 1 || axis > valve.NumAxes {
		return
	}
	b.mu.Lock()
	b.enabled[axis-1] = [2]bool{open, close}
	b.mu.Unlock()
	if !open {
		b.pins[axis-1][0].Low()
	}
	if !close {
		b.pins[axis-1][1].Low()
	}
}

func (b *bridge) ArmSampling(axis uint8, dir valve.Direction) {
	b.mu.Lock()
	b.armedAxis = axis
	b.mu.Unlock()
}

func (b *bridge) DisarmSampling() {
	b.mu.Lock()
	b.armedAxis = 0
	b.mu.Unlock()
}

func (b *bridge) output(high bool) {
	b.mu.Lock()
	enabled := b.enabled
	b.mu.Unlock()
	for i, e := range enabled {
		for j, on := range e {
			b.pins[i][j].Set(on && high)
		}
	}
}

func (b *bridge) armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armedAxis != 0
}

// run generates PWM cycles forever.
func (b *bridge) run(h sampleHandler) {
	for {
		b.output(true)
		time.Sleep(PWM_ON_TIME)
		if b.armed() {
			h.OnCurrentSample()
		}
		b.output(false)
		time.Sleep(BEMF_SETTLE)
		if b.armed() {
			h.OnBackEmfSample()
		}

		select {
		case b.cycle <- struct{}{}:
		default:
		}

		time.Sleep(PWM_PERIOD - PWM_ON_TIME - BEMF_SETTLE)
	}
}
