// Package client speaks the valve controller line protocol from the host.
package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/itohio/govalve/pkg/valve"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = time.Second

// ProtocolError is an "ERROR <code>" response.
type ProtocolError struct {
	Command string
	Code    valve.Code
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Command, e.Code.Line(), e.Code.Error())
}

// Status is a decoded Status? response.
type Status struct {
	Positions [valve.NumAxes]int
	Current   int // tenths of mA
	Word      uint16
}

// Referenced reports whether axis 1..4 has been homed.
func (s Status) Referenced(axis int) bool {
	return axis >= 1 && axis <= valve.NumAxes && s.Word&(1<<(valve.StatusReferencedShift+axis-1)) != 0
}

// ActiveAxis returns the selected axis, 0 if none.
func (s Status) ActiveAxis() int {
	for a := 1; a <= valve.NumAxes; a++ {
		if s.Word&(1<<(valve.StatusActiveShift+a-1)) != 0 {
			return a
		}
	}
	return 0
}

func (s Status) Moving() bool   { return s.Word&valve.StatusMove != 0 }
func (s Status) Homing() bool   { return s.Word&valve.StatusHome != 0 }
func (s Status) Bootload() bool { return s.Word&valve.StatusBootload != 0 }

// CurrentmA returns the motor current in milliamps.
func (s Status) CurrentmA() float64 { return float64(s.Current) / 10 }

// Client issues typed commands over a Device.
type Client struct {
	dev     Device
	timeout time.Duration
}

// New creates a client. A zero timeout uses DefaultTimeout.
func New(dev Device, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{dev: dev, timeout: timeout}
}

// Device returns the underlying device.
func (c *Client) Device() Device { return c.dev }

// Do sends a raw line and returns the response. ERROR responses are
// returned as *ProtocolError.
func (c *Client) Do(ctx context.Context, line string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.dev.Request(ctx, line)
	if err != nil {
		return "", errors.Wrapf(err, "request %q", line)
	}
	if code, ok := parseError(resp); ok {
		return "", &ProtocolError{Command: line, Code: code}
	}
	return resp, nil
}

// Move sets the setpoint and current limit of axis and starts the move.
// Axis 0 cancels a running move.
func (c *Client) Move(ctx context.Context, axis, position, limit int) error {
	line := fmt.Sprintf("Move:%d,%d,%d", axis, position, limit)
	return c.expectEcho(ctx, line)
}

// Home starts a homing run of axis with the given current limit. Axis 0
// clears every reference.
func (c *Client) Home(ctx context.Context, axis, limit int) error {
	line := fmt.Sprintf("Home:%d,%d", axis, limit)
	return c.expectEcho(ctx, line)
}

func (c *Client) expectEcho(ctx context.Context, line string) error {
	resp, err := c.Do(ctx, line)
	if err != nil {
		return err
	}
	if resp != line {
		return errors.Errorf("unexpected response %q to %q", resp, line)
	}
	return nil
}

// Status queries positions, current and the status word.
func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, err := c.Do(ctx, "Status?")
	if err != nil {
		return Status{}, err
	}
	return parseStatus(resp)
}

// Setpoints queries the setpoints of all axes.
func (c *Client) Setpoints(ctx context.Context) ([valve.NumAxes]int, error) {
	return c.list(ctx, "SetPos?", "SetPos:")
}

// Limits queries the current limits of all axes in tenths of mA.
func (c *Client) Limits(ctx context.Context) ([valve.NumAxes]int, error) {
	return c.list(ctx, "max_mA?", "max_mA:")
}

func (c *Client) list(ctx context.Context, query, prefix string) ([valve.NumAxes]int, error) {
	resp, err := c.Do(ctx, query)
	if err != nil {
		return [valve.NumAxes]int{}, err
	}
	return parseList(resp, prefix)
}

// Version queries the firmware version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.Do(ctx, "Version?")
	if err != nil {
		return "", err
	}
	v, ok := strings.CutPrefix(resp, "Version:")
	if !ok {
		return "", errors.Errorf("invalid version response %q", resp)
	}
	return strings.TrimSpace(v), nil
}

// Errors queries the latched fault flags.
func (c *Client) Errors(ctx context.Context) (uint8, error) {
	resp, err := c.Do(ctx, "Errors?")
	if err != nil {
		return 0, err
	}
	v, ok := strings.CutPrefix(resp, "Errors:0x")
	if !ok {
		return 0, errors.Errorf("invalid errors response %q", resp)
	}
	bits, err := strconv.ParseUint(v, 16, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid errors response %q", resp)
	}
	return uint8(bits), nil
}

// CheckVersion verifies that the firmware version satisfies constraint,
// e.g. "~0.2".
func (c *Client) CheckVersion(ctx context.Context, constraint string) (string, error) {
	version, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	if err := checkVersion(version, constraint); err != nil {
		return version, err
	}
	return version, nil
}

func checkVersion(version, constraint string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "invalid firmware version %q", version)
	}
	cons, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %q", constraint)
	}
	if !cons.Check(v) {
		return errors.Errorf("firmware %s does not satisfy %s", version, constraint)
	}
	return nil
}

func parseError(resp string) (valve.Code, bool) {
	v, ok := strings.CutPrefix(resp, "ERROR ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return valve.Code(n), true
}

// parseStatus parses "Status:<p1>,<p2>,<p3>,<p4>,<mA>,0x<word>".
func parseStatus(resp string) (Status, error) {
	body, ok := strings.CutPrefix(resp, "Status:")
	if !ok {
		return Status{}, errors.Errorf("invalid status response %q", resp)
	}
	parts := strings.Split(body, ",")
	if len(parts) != valve.NumAxes+2 {
		return Status{}, errors.Errorf("invalid status response: expected %d fields, got %d", valve.NumAxes+2, len(parts))
	}

	var s Status
	for i := 0; i < valve.NumAxes; i++ {
		p, err := strconv.Atoi(parts[i])
		if err != nil {
			return Status{}, errors.Wrapf(err, "invalid position of axis %d", i+1)
		}
		s.Positions[i] = p
	}

	current, err := strconv.Atoi(parts[valve.NumAxes])
	if err != nil {
		return Status{}, errors.Wrap(err, "invalid current")
	}
	s.Current = current

	word, ok := strings.CutPrefix(parts[valve.NumAxes+1], "0x")
	if !ok {
		return Status{}, errors.Errorf("invalid status word %q", parts[valve.NumAxes+1])
	}
	w, err := strconv.ParseUint(word, 16, 16)
	if err != nil {
		return Status{}, errors.Wrap(err, "invalid status word")
	}
	s.Word = uint16(w)

	return s, nil
}

// parseList parses "<prefix><v1>,<v2>,<v3>,<v4>".
func parseList(resp, prefix string) ([valve.NumAxes]int, error) {
	var out [valve.NumAxes]int
	body, ok := strings.CutPrefix(resp, prefix)
	if !ok {
		return out, errors.Errorf("invalid response %q, expected %s", resp, prefix)
	}
	parts := strings.Split(body, ",")
	if len(parts) != valve.NumAxes {
		return out, errors.Errorf("invalid response: expected %d values, got %d", valve.NumAxes, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return out, errors.Wrapf(err, "invalid value for axis %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}
