package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/govalve/pkg/client"
	"github.com/itohio/govalve/pkg/config"
	"github.com/itohio/govalve/pkg/telemetry"
	"github.com/itohio/govalve/pkg/valve"
)

// tracePoints is the number of rows printed by trace.
const tracePoints = 20

type app struct {
	cfg    *config.Config
	client *client.Client
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	if cmd != "version" {
		if _, err := a.client.CheckVersion(ctx, a.cfg.Client.FirmwareConstraint); err != nil {
			log.Warnf("firmware check: %v", err)
		}
	}

	switch cmd {
	case "move":
		v, err := ints(args, 3)
		if err != nil {
			return err
		}
		return a.client.Move(ctx, v[0], v[1], v[2])
	case "home":
		v, err := ints(args, 2)
		if err != nil {
			return err
		}
		return a.client.Home(ctx, v[0], v[1])
	case "status":
		st, err := a.client.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatStatus(st))
	case "setpos":
		v, err := a.client.Setpoints(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatAxes(v, "%d %%"))
	case "limits":
		v, err := a.client.Limits(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatAxes(v, "%d"))
	case "version":
		v, err := a.client.CheckVersion(ctx, a.cfg.Client.FirmwareConstraint)
		if v != "" {
			fmt.Println(v)
		}
		return err
	case "errors":
		flags, err := a.client.Errors(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatErrors(flags))
	case "watch":
		return a.watch(ctx)
	case "trace":
		v, err := ints(args, 3)
		if err != nil {
			return err
		}
		return a.trace(ctx, v[0], v[1], v[2])
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
	return nil
}

// pipeline polls the controller and applies the configured averaging.
func (a *app) pipeline(ctx context.Context) <-chan telemetry.Sample {
	samples := telemetry.Poll(ctx, a.client, a.cfg.Client.PollInterval, 0)
	if a.cfg.Client.AverageSamples > 0 {
		samples = telemetry.NewAveragingConverter(a.cfg.Client.AverageSamples, 0)(samples)
	}
	return samples
}

func (a *app) watch(ctx context.Context) error {
	for s := range telemetry.NewChangeFilter(0)(a.pipeline(ctx)) {
		fmt.Printf("%s  %s\n", s.Timestamp.Format("15:04:05.000"), formatStatus(s.Status()))
	}
	return nil
}

// trace starts a move and records status samples until the axis stops.
func (a *app) trace(ctx context.Context, axis, position, limit int) error {
	if err := a.client.Move(ctx, axis, position, limit); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var recorded []telemetry.Sample
	for s := range a.pipeline(ctx) {
		recorded = append(recorded, s)
		if s.Word&valve.StatusMove == 0 {
			cancel()
		}
	}
	if len(recorded) == 0 {
		return errors.New("no samples recorded")
	}

	start := recorded[0].Timestamp
	for _, s := range telemetry.Downsample(nil, recorded, tracePoints) {
		fmt.Printf("%8s  %3d %%  %6.1f mA\n",
			s.Timestamp.Sub(start).Round(time.Millisecond), s.Positions[axis-1], s.CurrentmA)
	}
	return nil
}

func formatStatus(st client.Status) string {
	var b strings.Builder
	b.WriteString(formatAxes(st.Positions, "%d %%"))
	fmt.Fprintf(&b, "  %.1f mA", st.CurrentmA())

	var flags []string
	if ax := st.ActiveAxis(); ax != 0 {
		flags = append(flags, fmt.Sprintf("active=%d", ax))
	}
	if st.Moving() {
		flags = append(flags, "moving")
	}
	if st.Homing() {
		flags = append(flags, "homing")
	}
	if st.Bootload() {
		flags = append(flags, "bootload")
	}
	var refs []string
	for ax := 1; ax <= valve.NumAxes; ax++ {
		if st.Referenced(ax) {
			refs = append(refs, fmt.Sprint(ax))
		}
	}
	if len(refs) > 0 {
		flags = append(flags, "referenced="+strings.Join(refs, ","))
	}
	if len(flags) > 0 {
		b.WriteString("  " + strings.Join(flags, " "))
	}
	return b.String()
}

func formatAxes(v [valve.NumAxes]int, format string) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%d: "+format, i+1, x)
	}
	return strings.Join(parts, "  ")
}

func formatErrors(flags uint8) string {
	names := []struct {
		flag valve.ErrorFlag
		name string
	}{
		{valve.ChecksumError, "checksum"},
		{valve.UnexpectedInterrupt, "unexpected-interrupt"},
		{valve.Overcurrent, "overcurrent"},
	}
	var set []string
	for _, n := range names {
		if flags&uint8(n.flag) != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return fmt.Sprintf("0x%02X none", flags)
	}
	return fmt.Sprintf("0x%02X %s", flags, strings.Join(set, " "))
}
