package valve

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// Hardware bundles the capability ports the controller drives.
type Hardware struct {
	Current CurrentSensor
	BackEmf BackEmfSensor
	Pwm     PwmOutput
}

// Controller owns the valve state and runs the three execution tiers:
// sampling events (OnCurrentSample, OnBackEmfSample), the millisecond tick
// and serial receive (OnMillisecond, RxByte), and the foreground loop (Step,
// Run). Responses are written to out.
type Controller struct {
	cfg       Config
	cs        critical
	state     State
	time      Timebase
	rx        Receiver
	driver    *MotorDriver
	protector Protector
	current   CurrentSensor
	bemf      BackEmfSensor
	out       io.Writer
	log       Logger

	pendingTrip uint8
	mode        Mode
	axis        uint8
	lastTick    uint16
	edges       atomic.Uint32
}

// New creates a controller with every output off. A nil logger discards
// diagnostics.
func New(cfg Config, hw Hardware, out io.Writer, log Logger) *Controller {
	cfg.ensureDefaults()
	if log == nil {
		log = nopLogger{}
	}
	c := &Controller{
		cfg:       cfg,
		protector: Protector{Debounce: cfg.OvercurrentDebounce},
		current:   hw.Current,
		bemf:      hw.BackEmf,
		out:       out,
		log:       log,
	}
	c.driver = newMotorDriver(hw.Pwm, &c.cs, log, cfg.PwmSyncTimeout, c.tripPendingLocked)
	return c
}

// OnMillisecond advances the timebase.
func (c *Controller) OnMillisecond() { c.time.Tick() }

// RxByte passes one received byte to the line receiver. It returns false
// while a complete line waits for the foreground.
func (c *Controller) RxByte(b byte) bool { return c.rx.RxByte(b) }

// OnAxisEdge acknowledges an edge notification on an axis input.
func (c *Controller) OnAxisEdge() { c.edges.Add(1) }

// AxisEdges returns the number of acknowledged axis edges.
func (c *Controller) AxisEdges() uint32 { return c.edges.Load() }

// OnUnexpectedInterrupt latches the diagnostic flag for an interrupt source
// nobody handles.
func (c *Controller) OnUnexpectedInterrupt() { c.state.Errors.Latch(UnexpectedInterrupt) }

// Errors exposes the latched fault flags.
func (c *Controller) Errors() *ErrorFlags { return &c.state.Errors }

// Timebase exposes the millisecond counter.
func (c *Controller) Timebase() *Timebase { return &c.time }

// StartTimebase drives OnMillisecond from ts until ctx is done.
func (c *Controller) StartTimebase(ctx context.Context, ts TimerSource) {
	go ts.Every(ctx, time.Millisecond, c.OnMillisecond)
}

// Step runs one foreground iteration: it answers a pending command line, if
// any, and then advances the state machine by one tick.
func (c *Controller) Step() {
	if line, ok := c.rx.Take(); ok {
		c.respond(c.Execute(line))
		c.rx.Rearm()
	}
	c.tick()
}

func (c *Controller) respond(r Response) {
	if _, err := io.WriteString(c.out, r.String()+"\n"); err != nil {
		c.log.Printf("valve: write response: %v", err)
	}
}

// Run calls Step every interval until ctx is done. All outputs are switched
// off on return.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	defer c.driver.Idle()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.Step()
		if interval > 0 {
			time.Sleep(interval)
		}
	}
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Axes      [NumAxes]AxisState
	Status    ControllerStatus
	Sensing   SensingState
	Errors    uint8
	Mode      Mode
	Driven    uint8
	Direction Direction
}

// StatusWord returns the status word of the snapshot.
func (s *Snapshot) StatusWord() uint16 { return StatusWord(s.Status, &s.Axes) }

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	s := c.cs.enter()
	defer c.cs.exit(s)
	axis, dir := c.driver.appliedLocked()
	return Snapshot{
		Axes:      c.state.Axes,
		Status:    c.state.Status,
		Sensing:   c.state.Sensing,
		Errors:    c.state.Errors.Bits(),
		Mode:      c.mode,
		Driven:    axis,
		Direction: dir,
	}
}
