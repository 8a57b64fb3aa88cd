package sim

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/itohio/govalve/pkg/config"
	"github.com/itohio/govalve/pkg/sensor"
	"github.com/itohio/govalve/pkg/valve"
)

// Bench is a valve controller wired to simulated hardware through the same
// sensor adapters the firmware uses.
type Bench struct {
	Hardware   *Hardware
	Controller *valve.Controller

	interval time.Duration
}

// NewBench builds the controller on simulated hardware. Responses are
// written to out.
func NewBench(cfg *config.Config, out io.Writer, log valve.Logger) (*Bench, error) {
	hw := New(&cfg.Sim)
	scfg := cfg.Sensor.Hardware()

	current := sensor.NewINA219(hw, scfg)
	if err := current.Configure(); err != nil {
		return nil, errors.Wrap(err, "failed to configure current sensor")
	}
	bemf := sensor.NewBackEmf(scfg, hw.ADC(1), hw.ADC(2), hw.ADC(3), hw.ADC(4))

	ctrl := valve.New(cfg.Controller.Valve(), valve.Hardware{
		Current: current,
		BackEmf: bemf,
		Pwm:     hw,
	}, out, log)

	return &Bench{
		Hardware:   hw,
		Controller: ctrl,
		interval:   cfg.Controller.LoopInterval,
	}, nil
}

// Run starts the timebase and the PWM cycle generator and runs the
// controller's foreground loop until ctx is done.
func (b *Bench) Run(ctx context.Context) error {
	b.Controller.StartTimebase(ctx, Clock{})
	if err := b.Hardware.Start(ctx, b.Controller); err != nil {
		return errors.Wrap(err, "failed to start pwm")
	}
	err := b.Controller.Run(ctx, b.interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Feed copies bytes from r into the controller's line receiver, holding
// back while a received line waits to be answered. It returns nil at EOF.
func (b *Bench) Feed(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read command stream")
		}
		for !b.Controller.RxByte(c) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	}
}
