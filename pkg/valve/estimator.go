package valve

// OnCurrentSample handles the current-sample event of the PWM cycle: it
// filters the motor current of the driven axis and runs the overcurrent
// protector on the result.
func (c *Controller) OnCurrentSample() {
	axis, dir := c.driver.Applied()
	if axis == 0 || dir == Stop {
		return
	}
	raw, err := c.current.ReadCurrent()

	s := c.cs.enter()
	defer c.cs.exit(s)
	if a, d := c.driver.appliedLocked(); a != axis || d == Stop {
		return
	}

	f := &c.state.Sensing
	if err != nil {
		raw = f.FilteredCurrent
	}
	if raw < 0 {
		raw = 0
	}
	f.FilteredCurrent = int16(lowPass(int32(f.FilteredCurrent), int32(raw), c.cfg.CurrentShift))

	if c.protector.Check(f, f.FilteredCurrent, c.state.axis(axis).CurrentLimit) {
		c.driver.stopLocked()
		c.state.Errors.Latch(Overcurrent)
		c.pendingTrip = axis
	}
}

// OnBackEmfSample handles the back-EMF sample event taken while the bridge is
// off: it filters the reading, feeds the ripple history and counts zero
// crossings of the driven axis.
func (c *Controller) OnBackEmfSample() {
	axis, dir := c.driver.Applied()
	if axis == 0 || dir == Stop {
		return
	}

	s := c.cs.enter()
	prev := c.state.Sensing.FilteredBackEmf
	c.cs.exit(s)

	var sum uint32
	for i := 0; i < c.cfg.BackEmfConversions; i++ {
		v, err := c.bemf.ReadBackEmf(axis)
		if err != nil {
			v = prev
		}
		sum += uint32(v)
	}
	sample := sum / uint32(c.cfg.BackEmfConversions)

	s = c.cs.enter()
	defer c.cs.exit(s)
	if a, d := c.driver.appliedLocked(); a != axis || d != dir {
		return
	}

	f := &c.state.Sensing
	f.FilteredBackEmf = uint16(lowPass(int32(f.FilteredBackEmf), int32(sample), c.cfg.BackEmfShift))
	h := f.FilteredBackEmf >> 4
	if h > 255 {
		h = 255
	}
	f.History.Push(uint8(h))
	if f.detectZeroCross(c.cfg.ZeroCrossDebounce) {
		c.state.axis(axis).countZeroCross(dir)
	}
}
