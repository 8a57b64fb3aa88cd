// Package sensor adapts bus-level peripherals to the sensor ports of the
// valve controller.
package sensor

import "github.com/itohio/govalve/pkg/valve"

// Config describes the sense hardware.
type Config struct {
	// ShuntMilliOhm is the current shunt resistance.
	ShuntMilliOhm int32
	// Retries is the number of bus attempts per reading.
	Retries int
	// BackEmfShift right-aligns raw ADC readings. machine.ADC returns 12 bit
	// conversions left-aligned to 16 bits, the estimator works on the 12 bit
	// value.
	BackEmfShift uint8
}

// DefaultConfig matches the valve board: a 100 mOhm shunt and a 16 bit ADC
// interface.
func DefaultConfig() Config {
	return Config{
		ShuntMilliOhm: 100,
		Retries:       3,
		BackEmfShift:  4,
	}
}

// Retry calls fn up to n times and returns nil on the first success. When
// every attempt fails it returns valve.ErrSensorTimeout.
func Retry(n int, fn func() error) error {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if fn() == nil {
			return nil
		}
	}
	return valve.ErrSensorTimeout
}
