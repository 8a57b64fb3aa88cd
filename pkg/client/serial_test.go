package client

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePeer answers each received line from replies over one end of a pipe.
func pipePeer(t *testing.T, replies map[string]string) OpenFunc {
	return func(port string, baudRate int) (io.ReadWriteCloser, error) {
		host, dev := net.Pipe()
		go func() {
			defer dev.Close()
			scanner := bufio.NewScanner(dev)
			for scanner.Scan() {
				r, ok := replies[scanner.Text()]
				if !ok {
					continue
				}
				if _, err := io.WriteString(dev, r+"\n"); err != nil {
					return
				}
			}
		}()
		return host, nil
	}
}

func TestSerial_Request(t *testing.T) {
	d := NewSerial("/dev/fake", 0, pipePeer(t, map[string]string{
		"Version?": "Version: v0.2",
		"Status?":  "Status:1,2,3,4,0,0x0000",
	}))
	assert.Equal(t, DefaultBaudRate, d.baudRate)

	require.NoError(t, d.Connect())
	defer d.Close()
	assert.True(t, d.IsConnected())
	assert.ErrorIs(t, d.Connect(), ErrAlreadyConnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := d.Request(ctx, "Version?")
	require.NoError(t, err)
	assert.Equal(t, "Version: v0.2", resp)

	resp, err = d.Request(ctx, "Status?")
	require.NoError(t, err)
	assert.Equal(t, "Status:1,2,3,4,0,0x0000", resp)
}

func TestSerial_RequestTimeout(t *testing.T) {
	d := NewSerial("/dev/fake", 0, pipePeer(t, nil))
	require.NoError(t, d.Connect())
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Request(ctx, "Status?")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerial_NotConnected(t *testing.T) {
	d := NewSerial("/dev/fake", 0, pipePeer(t, nil))
	_, err := d.Request(context.Background(), "Status?")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, d.Close())
}

func TestSerial_OpenFailure(t *testing.T) {
	d := NewSerial("/dev/fake", 0, func(string, int) (io.ReadWriteCloser, error) {
		return nil, io.ErrClosedPipe
	})
	err := d.Connect()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.False(t, d.IsConnected())
}

func TestSerial_CloseStopsReader(t *testing.T) {
	d := NewSerial("/dev/fake", 0, pipePeer(t, nil))
	require.NoError(t, d.Connect())
	lines := d.lines
	require.NoError(t, d.Close())
	assert.False(t, d.IsConnected())

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestDrain(t *testing.T) {
	lines := make(chan string, 3)
	lines <- "stale"
	lines <- "older"
	drain(lines)
	assert.Len(t, lines, 0)
}
