package valve

import (
	"errors"
	"strconv"
)

// Code is a protocol error code reported to the host as "ERROR <code>".
type Code int8

const (
	ErrAxisRange        Code = -1
	ErrSetpointRange    Code = -2
	ErrCurrentMax       Code = -3 // reserved
	ErrUndefinedCommand Code = -4
	ErrNotReferenced    Code = -5
	ErrHomingActive     Code = -6
	ErrTimeout          Code = -127
)

func (c Code) Error() string {
	switch c {
	case ErrAxisRange:
		return "axis out of range"
	case ErrSetpointRange:
		return "setpoint or current limit out of range"
	case ErrCurrentMax:
		return "current limit exceeded"
	case ErrUndefinedCommand:
		return "undefined command"
	case ErrNotReferenced:
		return "axis not referenced"
	case ErrHomingActive:
		return "homing active"
	case ErrTimeout:
		return "sensor timeout"
	}
	return "error " + strconv.Itoa(int(c))
}

// Line renders the code the way it goes over the wire, without terminator.
func (c Code) Line() string {
	return "ERROR " + strconv.Itoa(int(c))
}

// ErrSensorTimeout is returned by sensor ports whose bus did not answer in time.
var ErrSensorTimeout error = ErrTimeout

// CodeOf extracts the protocol code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return 0, false
}
