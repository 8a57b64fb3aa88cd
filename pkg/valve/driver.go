package valve

import "time"

// MotorDriver maps an (axis, direction) pair onto the H-bridge channels and
// the sampling triggers of the PWM output.
type MotorDriver struct {
	pwm     PwmOutput
	cs      *critical
	log     Logger
	timeout time.Duration
	// blocked reports, inside the critical section, whether axis has a trip
	// the state machine has not consumed yet.
	blocked func(axis uint8) bool

	axis uint8
	dir  Direction
}

func newMotorDriver(pwm PwmOutput, cs *critical, log Logger, timeout time.Duration, blocked func(uint8) bool) *MotorDriver {
	d := &MotorDriver{pwm: pwm, cs: cs, log: log, timeout: timeout, blocked: blocked}
	d.allOffLocked()
	return d
}

// Set drives axis in dir. Starting or reversing a motor first waits for the
// running PWM period to end so that no truncated pulse reaches the bridge.
// An axis tripped during that wait stays stopped.
func (d *MotorDriver) Set(axis uint8, dir Direction) {
	s := d.cs.enter()
	same := d.axis == axis && d.dir == dir
	d.cs.exit(s)
	if same {
		return
	}

	if dir != Stop && !d.pwm.WaitCycleEnd(d.timeout) {
		d.log.Printf("valve: pwm cycle sync timed out on axis %d", axis)
	}

	s = d.cs.enter()
	if dir != Stop && d.blocked != nil && d.blocked(axis) {
		d.cs.exit(s)
		d.log.Printf("valve: axis %d tripped, drive refused", axis)
		return
	}
	d.applyLocked(axis, dir)
	d.cs.exit(s)
}

// Idle switches every channel off and disarms sampling.
func (d *MotorDriver) Idle() {
	s := d.cs.enter()
	defer d.cs.exit(s)
	if d.axis == 0 && d.dir == Stop {
		return
	}
	d.allOffLocked()
}

func (d *MotorDriver) allOffLocked() {
	d.pwm.DisarmSampling()
	for a := uint8(1); a <= NumAxes; a++ {
		d.pwm.SetChannels(a, false, false)
	}
	d.axis, d.dir = 0, Stop
}

// Applied returns the last axis and direction put on the outputs.
func (d *MotorDriver) Applied() (uint8, Direction) {
	s := d.cs.enter()
	defer d.cs.exit(s)
	return d.axis, d.dir
}

func (d *MotorDriver) appliedLocked() (uint8, Direction) {
	return d.axis, d.dir
}

// stopLocked halts the driven axis from inside a critical section.
func (d *MotorDriver) stopLocked() {
	d.applyLocked(d.axis, Stop)
}

func (d *MotorDriver) applyLocked(axis uint8, dir Direction) {
	if d.axis != 0 && d.axis != axis {
		d.pwm.SetChannels(d.axis, false, false)
	}
	d.pwm.DisarmSampling()
	if axis == 0 {
		d.axis, d.dir = 0, Stop
		return
	}
	d.pwm.SetChannels(axis, dir == Open, dir == Close)
	if dir != Stop {
		d.pwm.ArmSampling(axis, dir)
	}
	d.axis, d.dir = axis, dir
}
