// Package sim simulates the valve board: four geared DC motors with end
// stops, the INA219 current monitor on the I2C bus, the back-EMF ADC inputs
// and the PWM bridge that triggers sampling.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"tinygo.org/x/drivers/ina219"

	"github.com/itohio/govalve/pkg/config"
	"github.com/itohio/govalve/pkg/sensor"
	"github.com/itohio/govalve/pkg/valve"
)

// The simulated board carries a 100 mOhm shunt, so the INA219 shunt
// register counts in tenths of a milliamp.
const (
	busVoltageMilliVolt = 12000
	adcMax              = 1<<12 - 1
)

var (
	ErrBus        = errors.New("i2c bus error")
	ErrNoDevice   = errors.New("no device at address")
	ErrRunning    = errors.New("already running")
	errShortWrite = errors.New("i2c write too short")
)

// SampleHandler receives the sampling events of each PWM cycle.
type SampleHandler interface {
	OnCurrentSample()
	OnBackEmfSample()
}

type motor struct {
	position    float32 // %
	open, close bool
}

// driven returns the travel direction the bridge inputs select.
func (m *motor) driven() valve.Direction {
	switch {
	case m.open && !m.close:
		return valve.Open
	case m.close && !m.open:
		return valve.Close
	}
	return valve.Stop
}

// stalled reports whether the motor pushes against an end stop.
func (m *motor) stalled() bool {
	switch m.driven() {
	case valve.Open:
		return m.position >= 100
	case valve.Close:
		return m.position <= 0
	}
	return false
}

// Hardware simulates the valve board.
type Hardware struct {
	cfg *config.SimConfig

	mu      sync.RWMutex
	running bool
	start   time.Time
	last    time.Time
	rng     *rand.Rand

	motors    [valve.NumAxes]motor
	armedAxis uint8
	armedDir  valve.Direction

	inaConfig      uint16
	inaCalibration uint16
}

var _ valve.PwmOutput = (*Hardware)(nil)

// New creates the simulated board with the valves at their configured
// initial positions.
func New(cfg *config.SimConfig) *Hardware {
	if cfg == nil {
		cfg = &config.Default().Sim
	}
	h := &Hardware{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i := range h.motors {
		if i < len(cfg.Positions) {
			h.motors[i].position = clamp(float32(cfg.Positions[i]))
		}
	}
	return h
}

// Start runs the PWM cycle generator until ctx is done. Every cycle advances
// the motors and, while sampling is armed, raises the current and back-EMF
// sample events on handler.
func (h *Hardware) Start(ctx context.Context, handler SampleHandler) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrRunning
	}
	h.running = true
	h.start = time.Now()
	h.last = h.start
	h.mu.Unlock()

	go h.generateCycles(ctx, handler)
	return nil
}

func (h *Hardware) generateCycles(ctx context.Context, handler SampleHandler) {
	ticker := time.NewTicker(h.cfg.PwmPeriod)
	defer ticker.Stop()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.mu.Lock()
			h.advance(now.Sub(h.last))
			h.last = now
			armed := h.armedAxis != 0
			h.mu.Unlock()

			if armed {
				handler.OnCurrentSample()
				handler.OnBackEmfSample()
			}
		}
	}
}

// Advance moves the motors by dt of drive time. It is called by the cycle
// generator and may be used directly when no generator runs.
func (h *Hardware) Advance(dt time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(dt)
}

func (h *Hardware) advance(dt time.Duration) {
	step := float32(dt.Seconds() / h.cfg.TravelTime.Seconds() * 100)
	for i := range h.motors {
		m := &h.motors[i]
		m.position = clamp(m.position + step*float32(m.driven()))
	}
}

// Position returns the true position of axis in percent.
func (h *Hardware) Position(axis uint8) float32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if axis < 1 || axis > valve.NumAxes {
		return 0
	}
	return h.motors[axis-1].position
}

// WaitCycleEnd sleeps until the next PWM period boundary.
func (h *Hardware) WaitCycleEnd(timeout time.Duration) bool {
	h.mu.RLock()
	running, start := h.running, h.start
	h.mu.RUnlock()
	if !running {
		return true
	}

	period := h.cfg.PwmPeriod
	remaining := period - time.Since(start)%period
	if remaining > timeout {
		time.Sleep(timeout)
		return false
	}
	time.Sleep(remaining)
	return true
}

func (h *Hardware) SetChannels(axis uint8, open, close bool) {
	if axis < 1 || axis > valve.NumAxes {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.motors[axis-1].open = open
	h.motors[axis-1].close = close
}

func (h *Hardware) ArmSampling(axis uint8, dir valve.Direction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armedAxis, h.armedDir = axis, dir
}

func (h *Hardware) DisarmSampling() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armedAxis, h.armedDir = 0, valve.Stop
}

// Driven lists the axes whose bridge is switched on.
func (h *Hardware) Driven() []uint8 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []uint8
	for i := range h.motors {
		if h.motors[i].driven() != valve.Stop {
			out = append(out, uint8(i+1))
		}
	}
	return out
}

// current returns the supply current in mA.
func (h *Hardware) current() float32 {
	var mA float32
	for i := range h.motors {
		m := &h.motors[i]
		switch {
		case m.stalled():
			mA += float32(h.cfg.EndStopCurrent)
		case m.driven() != valve.Stop:
			mA += float32(h.cfg.RunCurrent)
		}
	}
	return mA + h.noise(h.cfg.NoiseLevel)
}

// backEmf returns the 12 bit back-EMF reading of axis.
func (h *Hardware) backEmf(axis uint8) float32 {
	m := &h.motors[axis-1]
	if m.driven() == valve.Stop || m.stalled() {
		return 0
	}
	phase := 2 * math32.Pi * m.position * float32(h.cfg.RipplePerPercent)
	v := float32(h.cfg.BemfLevel) + float32(h.cfg.RippleAmplitude)*math32.Sin(phase)
	if v < 0 {
		return 0
	}
	if v > adcMax {
		return adcMax
	}
	return v
}

func (h *Hardware) noise(level float64) float32 {
	if level == 0 {
		return 0
	}
	return float32(h.rng.NormFloat64() * level)
}

// ADC returns the back-EMF input of axis. Readings are 12 bit conversions
// left-aligned to 16 bits like machine.ADC.
func (h *Hardware) ADC(axis uint8) sensor.ADC {
	return adcChannel{h: h, axis: axis}
}

type adcChannel struct {
	h    *Hardware
	axis uint8
}

func (a adcChannel) Get() uint16 {
	a.h.mu.RLock()
	defer a.h.mu.RUnlock()
	if a.axis < 1 || a.axis > valve.NumAxes {
		return 0
	}
	return uint16(a.h.backEmf(a.axis)) << 4
}

// Tx implements drivers.I2C with an INA219 at its default address.
func (h *Hardware) Tx(addr uint16, w, r []byte) error {
	if addr != ina219.Address {
		return ErrNoDevice
	}
	if len(w) == 0 {
		return errShortWrite
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cfg.BusErrorRate > 0 && h.rng.Float64() < h.cfg.BusErrorRate {
		return ErrBus
	}

	reg := w[0]
	if len(w) >= 3 {
		val := uint16(w[1])<<8 | uint16(w[2])
		switch reg {
		case ina219.RegConfig:
			h.inaConfig = val
		case ina219.RegCalibration:
			h.inaCalibration = val
		}
		return nil
	}

	var val uint16
	switch reg {
	case ina219.RegConfig:
		val = h.inaConfig
	case ina219.RegCalibration:
		val = h.inaCalibration
	case ina219.RegShuntVoltage:
		val = uint16(int16(math32.Round(h.current() * 10)))
	case ina219.RegBusVoltage:
		val = busVoltageMilliVolt / 4 << 3
	}
	if len(r) >= 2 {
		r[0], r[1] = byte(val>>8), byte(val)
	}
	return nil
}

func clamp(p float32) float32 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
