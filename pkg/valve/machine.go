package valve

// Mode is the state of the main control state machine.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeHome
	ModeMove
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeHome:
		return "home"
	case ModeMove:
		return "move"
	}
	return "unknown"
}

func direction(setpoint, position uint8) Direction {
	switch {
	case setpoint > position:
		return Open
	case setpoint < position:
		return Close
	}
	return Stop
}

// tick runs one iteration of the state machine.
func (c *Controller) tick() {
	switch c.mode {
	case ModeIdle:
		c.tickIdle()
	case ModeHome:
		c.tickHome()
	case ModeMove:
		c.tickMove()
	}
}

func (c *Controller) setMode(m Mode) {
	if m == c.mode {
		return
	}
	c.log.Printf("valve: axis %d %s -> %s", c.axis, c.mode, m)
	s := c.cs.enter()
	c.mode = m
	c.cs.exit(s)
}

func (c *Controller) tripPendingLocked(axis uint8) bool {
	return c.pendingTrip != 0 && c.pendingTrip == axis
}

// takeTripLocked consumes a pending overcurrent trip of the driven axis.
func (c *Controller) takeTripLocked() bool {
	tripped := c.tripPendingLocked(c.axis)
	c.pendingTrip = 0
	return tripped
}

func (c *Controller) tickIdle() {
	c.driver.Idle()
	current, err := c.current.ReadCurrent()

	s := c.cs.enter()
	if err == nil {
		if current < 0 {
			current = 0
		}
		c.state.Sensing.FilteredCurrent = current
	}
	c.state.Sensing.OvercurrentStreak = 0

	st := c.state.Status
	next := ModeIdle
	switch {
	case st.HomeActive:
		next = ModeHome
		c.state.Status.MoveActive = false
	case st.MoveActive && c.state.axis(st.ActiveAxis) != nil:
		next = ModeMove
	}
	if next != ModeIdle {
		c.state.Sensing.reset()
		c.pendingTrip = 0
		c.axis = st.ActiveAxis
	}
	c.cs.exit(s)

	c.lastTick = c.time.Now()
	c.setMode(next)
}

func (c *Controller) tickMove() {
	var dir Direction
	done := false

	s := c.cs.enter()
	st := &c.state.Status
	a := c.state.axis(c.axis)
	switch {
	case st.HomeActive:
		// homing takes over and the interrupted move is dropped
		st.MoveActive = false
		done = true
	case !st.MoveActive || st.ActiveAxis != c.axis || a == nil:
		done = true
	case c.takeTripLocked():
		st.MoveActive = false
		done = true
	default:
		dir = direction(a.Setpoint, a.Position)
		if dir == Stop {
			st.MoveActive = false
			st.ActiveAxis = 0
			done = true
		}
	}
	c.cs.exit(s)

	if done {
		c.driver.Set(c.axis, Stop)
		c.setMode(ModeIdle)
		return
	}

	c.driver.Set(c.axis, dir)

	if c.time.Elapsed(c.lastTick) > c.cfg.MsPerPercent {
		s = c.cs.enter()
		a.Position = uint8(int(a.Position) + int(dir))
		c.cs.exit(s)
		c.lastTick = c.time.Now()
	}
}

func (c *Controller) tickHome() {
	done := false

	s := c.cs.enter()
	st := &c.state.Status
	a := c.state.axis(c.axis)
	switch {
	case a == nil:
		st.HomeActive = false
		st.ActiveAxis = 0
		done = true
	case !st.HomeActive || st.ActiveAxis != c.axis:
		done = true
	case c.takeTripLocked():
		// the closed end stop is the reference
		a.Position = 0
		a.Referenced = true
		st.HomeActive = false
		done = true
	}
	c.cs.exit(s)

	if done {
		if a != nil {
			c.driver.Set(c.axis, Stop)
		}
		c.setMode(ModeIdle)
		return
	}

	c.driver.Set(c.axis, Close)

	if c.time.Elapsed(c.lastTick) > c.cfg.MsPerPercent {
		s = c.cs.enter()
		if a.Position == 0 {
			a.Position = maxPosition - 1
		} else {
			a.Position--
		}
		c.cs.exit(s)
		c.lastTick = c.time.Now()
	}
}
