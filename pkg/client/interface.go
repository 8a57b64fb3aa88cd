package client

import "context"

// Device carries protocol lines to a valve controller (real or simulated).
type Device interface {
	Connect() error
	Close() error
	// Request sends one command line and returns the response line, both
	// without terminator.
	Request(ctx context.Context, line string) (string, error)
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Loopback implements Device.
var _ Device = (*Loopback)(nil)
