// Package valve is the control engine for up to four reversible DC-motor valve
// actuators. It interprets host command lines into per-axis intent, arbitrates
// a single driven axis through an Idle/Home/Move state machine, filters motor
// current and back-EMF samples taken on PWM-cycle events, and trips on
// sustained overcurrent.
//
// Hardware is reached only through the capability interfaces declared here,
// so the package builds both under TinyGo (firmware) and regular Go
// (simulator, tests).
package valve

import (
	"context"
	"time"
)

// NumAxes is the number of valve zones handled by one controller.
const NumAxes = 4

// Direction of travel. Open moves towards 100 %, Close towards 0 %.
type Direction int8

const (
	Close Direction = -1
	Stop  Direction = 0
	Open  Direction = +1
)

// CurrentSensor reads the motor current in tenths of a milliamp.
// A bus that does not respond in time yields ErrSensorTimeout.
type CurrentSensor interface {
	ReadCurrent() (int16, error)
}

// BackEmfSensor performs one back-EMF conversion for the given axis and
// returns the raw ADC value.
type BackEmfSensor interface {
	ReadBackEmf(axis uint8) (uint16, error)
}

// PwmOutput routes the shared PWM signal to the H-bridge inputs of an axis
// and arms the sampling events tied to its PWM cycle.
type PwmOutput interface {
	// WaitCycleEnd blocks until the running PWM period completes or the
	// timeout expires. It reports whether the period completed.
	WaitCycleEnd(timeout time.Duration) bool
	// SetChannels enables or disables the open and close inputs of axis.
	SetChannels(axis uint8, open, close bool)
	// ArmSampling enables current and back-EMF sampling for the driven
	// channel of axis.
	ArmSampling(axis uint8, dir Direction)
	// DisarmSampling disables all sampling events.
	DisarmSampling()
}

// TimerSource calls fn at a fixed period until ctx is done.
type TimerSource interface {
	Every(ctx context.Context, period time.Duration, fn func())
}

// Logger receives diagnostic messages. The logrus standard logger satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// Config holds the tuning constants of the control engine.
type Config struct {
	Version string

	// MsPerPercent is the drive time for 1 % of travel.
	MsPerPercent uint16

	// CurrentShift and BackEmfShift select the low-pass filter coefficient
	// alpha = 2^-shift.
	CurrentShift uint8
	BackEmfShift uint8

	// BackEmfConversions is the number of ADC conversions averaged per
	// back-EMF sample.
	BackEmfConversions int

	// OvercurrentDebounce is the number of consecutive over-limit samples
	// tolerated before a trip.
	OvercurrentDebounce uint8

	// ZeroCrossDebounce is the number of samples that must pass after a
	// zero crossing before the next one is counted.
	ZeroCrossDebounce uint8

	// PwmSyncTimeout bounds the wait for the end of a PWM period before
	// the channel assignment changes.
	PwmSyncTimeout time.Duration
}

// DefaultConfig returns the tuning used by the valve hardware.
func DefaultConfig() Config {
	return Config{
		Version:             "v0.2",
		MsPerPercent:        100,
		CurrentShift:        1,
		BackEmfShift:        1,
		BackEmfConversions:  2,
		OvercurrentDebounce: 12,
		ZeroCrossDebounce:   3,
		PwmSyncTimeout:      10 * time.Millisecond,
	}
}

// ensureDefaults fills fields that have no meaningful zero value. Filter
// shifts and debounce counts are kept as given.
func (c *Config) ensureDefaults() {
	def := DefaultConfig()
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.MsPerPercent == 0 {
		c.MsPerPercent = def.MsPerPercent
	}
	if c.BackEmfConversions <= 0 {
		c.BackEmfConversions = def.BackEmfConversions
	}
	if c.PwmSyncTimeout == 0 {
		c.PwmSyncTimeout = def.PwmSyncTimeout
	}
}
