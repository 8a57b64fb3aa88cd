package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/itohio/govalve/pkg/sensor"
	"github.com/itohio/govalve/pkg/valve"
)

// Config represents the application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Controller ControllerConfig `yaml:"controller"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Sim        SimConfig        `yaml:"sim"`
	Client     ClientConfig     `yaml:"client"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// ControllerConfig tunes the valve control engine.
type ControllerConfig struct {
	Version             string        `yaml:"version"`
	MsPerPercent        uint16        `yaml:"ms_per_percent"`
	CurrentFilterShift  uint8         `yaml:"current_filter_shift"`
	BemfFilterShift     uint8         `yaml:"bemf_filter_shift"`
	BemfConversions     int           `yaml:"bemf_conversions"`
	OvercurrentDebounce uint8         `yaml:"overcurrent_debounce"`
	ZeroCrossDebounce   uint8         `yaml:"zero_cross_debounce"`
	PwmSyncTimeout      time.Duration `yaml:"pwm_sync_timeout"`
	LoopInterval        time.Duration `yaml:"loop_interval"` // Foreground loop pause between iterations
}

// SensorConfig describes the current and back-EMF sense hardware.
type SensorConfig struct {
	ShuntMilliOhm int32 `yaml:"shunt_milliohm"`
	Retries       int   `yaml:"retries"`
	BemfShift     uint8 `yaml:"bemf_shift"` // Right shift from 16 bit left-aligned ADC readings to 12 bit counts
}

// SimConfig contains simulated valve hardware configuration.
type SimConfig struct {
	PwmPeriod        time.Duration `yaml:"pwm_period"`
	TravelTime       time.Duration `yaml:"travel_time"`        // Full stroke duration
	RunCurrent       float64       `yaml:"run_current"`        // mA while travelling
	EndStopCurrent   float64       `yaml:"end_stop_current"`   // mA when stalled at an end stop
	NoiseLevel       float64       `yaml:"noise_level"`        // mA
	BemfLevel        float64       `yaml:"bemf_level"`         // Mean back-EMF in 12 bit ADC counts
	RippleAmplitude  float64       `yaml:"ripple_amplitude"`   // Commutator ripple amplitude in 12 bit ADC counts
	RipplePerPercent float64       `yaml:"ripple_per_percent"` // Ripple periods per 1 % of travel
	BusErrorRate     float64       `yaml:"bus_error_rate"`     // Probability of a failed I2C transfer
	Positions        []float64     `yaml:"positions"`          // Initial valve positions in %
}

// ClientConfig contains host client parameters.
type ClientConfig struct {
	FirmwareConstraint string        `yaml:"firmware_constraint"`
	Timeout            time.Duration `yaml:"timeout"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	AverageSamples     int           `yaml:"average_samples"` // Number of samples to average (0 = disabled)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	def := valve.DefaultConfig()
	sdef := sensor.DefaultConfig()
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		Controller: ControllerConfig{
			Version:             def.Version,
			MsPerPercent:        def.MsPerPercent,
			CurrentFilterShift:  def.CurrentShift,
			BemfFilterShift:     def.BackEmfShift,
			BemfConversions:     def.BackEmfConversions,
			OvercurrentDebounce: def.OvercurrentDebounce,
			ZeroCrossDebounce:   def.ZeroCrossDebounce,
			PwmSyncTimeout:      def.PwmSyncTimeout,
			LoopInterval:        time.Millisecond,
		},
		Sensor: SensorConfig{
			ShuntMilliOhm: sdef.ShuntMilliOhm,
			Retries:       sdef.Retries,
			BemfShift:     sdef.BackEmfShift,
		},
		Sim: SimConfig{
			PwmPeriod:        8 * time.Millisecond,
			TravelTime:       10 * time.Second,
			RunCurrent:       15,
			EndStopCurrent:   60,
			NoiseLevel:       0.5,
			BemfLevel:        1600,
			RippleAmplitude:  30,
			RipplePerPercent: 0.5,
			Positions:        []float64{50, 50, 50, 50},
		},
		Client: ClientConfig{
			FirmwareConstraint: "~0.2",
			Timeout:            time.Second,
			PollInterval:       200 * time.Millisecond,
			AverageSamples:     0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", filename)
	}

	return nil
}

// Valve converts the controller section into engine tuning.
func (c ControllerConfig) Valve() valve.Config {
	return valve.Config{
		Version:             c.Version,
		MsPerPercent:        c.MsPerPercent,
		CurrentShift:        c.CurrentFilterShift,
		BackEmfShift:        c.BemfFilterShift,
		BackEmfConversions:  c.BemfConversions,
		OvercurrentDebounce: c.OvercurrentDebounce,
		ZeroCrossDebounce:   c.ZeroCrossDebounce,
		PwmSyncTimeout:      c.PwmSyncTimeout,
	}
}

// Hardware converts the sensor section for the sense adapters.
func (c SensorConfig) Hardware() sensor.Config {
	return sensor.Config{
		ShuntMilliOhm: c.ShuntMilliOhm,
		Retries:       c.Retries,
		BackEmfShift:  c.BemfShift,
	}
}

// ensureDefaults ensures that all required fields have default values if missing.
// Filter shifts and debounce counts are left alone since zero is a valid setting.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Controller.Version == "" {
		c.Controller.Version = def.Controller.Version
	}
	if c.Controller.MsPerPercent == 0 {
		c.Controller.MsPerPercent = def.Controller.MsPerPercent
	}
	if c.Controller.BemfConversions == 0 {
		c.Controller.BemfConversions = def.Controller.BemfConversions
	}
	if c.Controller.PwmSyncTimeout == 0 {
		c.Controller.PwmSyncTimeout = def.Controller.PwmSyncTimeout
	}

	if c.Sensor.ShuntMilliOhm == 0 {
		c.Sensor.ShuntMilliOhm = def.Sensor.ShuntMilliOhm
	}
	if c.Sensor.Retries == 0 {
		c.Sensor.Retries = def.Sensor.Retries
	}

	if c.Sim.PwmPeriod == 0 {
		c.Sim.PwmPeriod = def.Sim.PwmPeriod
	}
	if c.Sim.TravelTime == 0 {
		c.Sim.TravelTime = def.Sim.TravelTime
	}
	if c.Sim.RunCurrent == 0 {
		c.Sim.RunCurrent = def.Sim.RunCurrent
	}
	if c.Sim.EndStopCurrent == 0 {
		c.Sim.EndStopCurrent = def.Sim.EndStopCurrent
	}
	if c.Sim.BemfLevel == 0 {
		c.Sim.BemfLevel = def.Sim.BemfLevel
	}
	if c.Sim.RipplePerPercent == 0 {
		c.Sim.RipplePerPercent = def.Sim.RipplePerPercent
	}
	if len(c.Sim.Positions) == 0 {
		c.Sim.Positions = def.Sim.Positions
	}

	if c.Client.FirmwareConstraint == "" {
		c.Client.FirmwareConstraint = def.Client.FirmwareConstraint
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = def.Client.Timeout
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = def.Client.PollInterval
	}
}
