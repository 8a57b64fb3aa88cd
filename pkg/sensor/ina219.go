package sensor

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ina219"

	"github.com/itohio/govalve/pkg/valve"
)

var _ valve.CurrentSensor = (*INA219)(nil)

// INA219 reads the motor current from the shunt voltage register of an
// INA219 power monitor.
type INA219 struct {
	dev   ina219.Device
	shunt int32
	tries int
}

// NewINA219 creates the sensor on bus at the default address.
func NewINA219(bus drivers.I2C, cfg Config) *INA219 {
	if cfg.ShuntMilliOhm <= 0 {
		cfg.ShuntMilliOhm = DefaultConfig().ShuntMilliOhm
	}
	dev := ina219.New(bus)
	// +-40 mV shunt range covers 400 mA on the 100 mOhm shunt
	dev.SetConfig(ina219.Config16V400mA)
	return &INA219{dev: dev, shunt: cfg.ShuntMilliOhm, tries: cfg.Retries}
}

// Configure writes the measurement configuration to the device.
func (s *INA219) Configure() error {
	return Retry(s.tries, s.dev.Configure)
}

// ReadCurrent returns the shunt current in tenths of a milliamp. The shunt
// register has a 10 uV resolution, so with a 100 mOhm shunt one count is
// exactly 0.1 mA.
func (s *INA219) ReadCurrent() (int16, error) {
	var raw int16
	err := Retry(s.tries, func() (err error) {
		raw, err = s.dev.ShuntVoltage()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int16(int32(raw) * 100 / s.shunt), nil
}
