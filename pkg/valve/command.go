package valve

import (
	"strconv"
	"strings"
)

// Verb identifies a host command.
type Verb uint8

const (
	VerbUnknown Verb = iota
	VerbMove
	VerbHome
	VerbStatus
	VerbSetpoints
	VerbLimits
	VerbVersion
	VerbErrors
)

var verbs = []struct {
	prefix string
	verb   Verb
	args   int
}{
	{"Move:", VerbMove, 3},
	{"Home:", VerbHome, 2},
	{"Status?", VerbStatus, 0},
	{"SetPos?", VerbSetpoints, 0},
	{"max_mA?", VerbLimits, 0},
	{"Version?", VerbVersion, 0},
	{"Errors?", VerbErrors, 0},
}

// Command is one decoded host line.
type Command struct {
	Verb     Verb
	Axis     int
	Position int
	Limit    int
}

// Response is either a formatted line or an error code.
type Response struct {
	Line string
	Err  Code
}

func (r Response) String() string {
	if r.Err != 0 {
		return r.Err.Line()
	}
	return r.Line
}

func fail(c Code) Response { return Response{Err: c} }

// lookupVerb matches the line against the known prefixes and returns the
// payload following the prefix.
func lookupVerb(line string) (Verb, int, string) {
	for _, v := range verbs {
		if strings.HasPrefix(line, v.prefix) {
			return v.verb, v.args, line[len(v.prefix):]
		}
	}
	return VerbUnknown, 0, ""
}

// ParseCommand decodes a line without its terminator. Unknown verbs and
// malformed numeric payloads yield ErrUndefinedCommand.
func ParseCommand(line string) (Command, error) {
	verb, nargs, payload := lookupVerb(line)
	if verb == VerbUnknown {
		return Command{}, ErrUndefinedCommand
	}
	cmd := Command{Verb: verb}
	if nargs == 0 {
		return cmd, nil
	}

	fields := strings.Split(payload, ",")
	if len(fields) != nargs {
		return Command{}, ErrUndefinedCommand
	}
	vals := make([]int, nargs)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return Command{}, ErrUndefinedCommand
		}
		vals[i] = v
	}

	cmd.Axis = vals[0]
	switch verb {
	case VerbMove:
		cmd.Position, cmd.Limit = vals[1], vals[2]
	case VerbHome:
		cmd.Limit = vals[1]
	}
	return cmd, nil
}

// Execute interprets one host line and returns the response to send back.
// It never touches the motor outputs; the state machine acts on the flags
// it sets.
func (c *Controller) Execute(line string) Response {
	verb, _, _ := lookupVerb(line)

	// A homing run cannot be interrupted by a move, whatever its axis.
	if verb == VerbMove && c.homeActive() {
		return fail(ErrHomingActive)
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		return fail(ErrUndefinedCommand)
	}

	switch cmd.Verb {
	case VerbMove:
		return c.move(cmd)
	case VerbHome:
		return c.home(cmd)
	case VerbStatus:
		return Response{Line: c.formatStatus()}
	case VerbSetpoints:
		return Response{Line: c.formatAxes("SetPos:", func(a *AxisState) int { return int(a.Setpoint) })}
	case VerbLimits:
		return Response{Line: c.formatAxes("max_mA:", func(a *AxisState) int { return int(a.CurrentLimit) })}
	case VerbVersion:
		return Response{Line: "Version: " + c.cfg.Version}
	case VerbErrors:
		return Response{Line: "Errors:0x" + hex(uint64(c.state.Errors.Bits()), 2)}
	}
	return fail(ErrUndefinedCommand)
}

func (c *Controller) homeActive() bool {
	s := c.cs.enter()
	defer c.cs.exit(s)
	return c.state.Status.HomeActive
}

func (c *Controller) move(cmd Command) Response {
	echo := "Move:" + strconv.Itoa(cmd.Axis) + "," + strconv.Itoa(cmd.Position) + "," + strconv.Itoa(cmd.Limit)

	s := c.cs.enter()
	defer c.cs.exit(s)

	if cmd.Axis == 0 {
		c.state.Status.MoveActive = false
		c.state.Errors.Clear()
		return Response{Line: echo}
	}
	if cmd.Axis < 0 || cmd.Axis > NumAxes {
		return fail(ErrAxisRange)
	}
	if cmd.Position < 0 || cmd.Position > maxPosition {
		return fail(ErrSetpointRange)
	}
	if cmd.Limit <= 0 || cmd.Limit > maxMoveLimit {
		return fail(ErrSetpointRange)
	}

	id := uint8(cmd.Axis)
	a := c.state.axis(id)
	a.Setpoint = uint8(cmd.Position)
	a.CurrentLimit = int16(cmd.Limit)
	if !a.Referenced {
		return fail(ErrNotReferenced)
	}

	c.state.Status.ActiveAxis = id
	c.state.Status.MoveActive = true
	c.state.Errors.Clear()
	return Response{Line: echo}
}

func (c *Controller) home(cmd Command) Response {
	s := c.cs.enter()
	defer c.cs.exit(s)

	if cmd.Axis == 0 {
		for i := range c.state.Axes {
			c.state.Axes[i].Referenced = false
		}
		c.state.Errors.Clear()
		return Response{Line: "Home:0," + strconv.Itoa(cmd.Limit)}
	}
	if cmd.Axis < 0 || cmd.Axis > NumAxes {
		return fail(ErrAxisRange)
	}
	if cmd.Limit <= 0 || cmd.Limit > maxHomeLimit {
		return fail(ErrSetpointRange)
	}

	id := uint8(cmd.Axis)
	c.state.axis(id).CurrentLimit = int16(cmd.Limit)
	c.state.Status.ActiveAxis = id
	c.state.Status.HomeActive = true
	c.state.Errors.Clear()
	return Response{Line: "Home:" + strconv.Itoa(cmd.Axis) + "," + strconv.Itoa(cmd.Limit)}
}

func (c *Controller) formatStatus() string {
	s := c.cs.enter()
	var pos [NumAxes]uint8
	for i := range c.state.Axes {
		pos[i] = c.state.Axes[i].Position
	}
	current := c.state.Sensing.FilteredCurrent
	word := StatusWord(c.state.Status, &c.state.Axes)
	c.cs.exit(s)

	if current < 0 {
		current = 0
	}
	b := make([]byte, 0, 40)
	b = append(b, "Status:"...)
	for i := range pos {
		b = strconv.AppendUint(b, uint64(pos[i]), 10)
		b = append(b, ',')
	}
	b = strconv.AppendInt(b, int64(current), 10)
	b = append(b, ",0x"...)
	b = append(b, hex(uint64(word), 4)...)
	return string(b)
}

func (c *Controller) formatAxes(prefix string, field func(*AxisState) int) string {
	s := c.cs.enter()
	var vals [NumAxes]int
	for i := range c.state.Axes {
		vals[i] = field(&c.state.Axes[i])
	}
	c.cs.exit(s)

	b := make([]byte, 0, 32)
	b = append(b, prefix...)
	for i, v := range vals {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(v), 10)
	}
	return string(b)
}

// hex formats v as upper-case hexadecimal padded to width digits.
func hex(v uint64, width int) string {
	s := strings.ToUpper(strconv.FormatUint(v, 16))
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}
