package client

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate of the valve controller UART.
const DefaultBaudRate = 115200

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// OpenFunc opens the byte stream to the controller.
type OpenFunc func(port string, baudRate int) (io.ReadWriteCloser, error)

// OpenSerial opens a real serial port in 8N1 mode.
func OpenSerial(port string, baudRate int) (io.ReadWriteCloser, error) {
	return serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Serial talks to the valve controller over a serial line.
type Serial struct {
	port     string
	baudRate int
	open     OpenFunc

	reqMu     sync.Mutex
	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	lines     chan string
	cancel    context.CancelFunc
	connected bool
}

// NewSerial creates a Serial device for port. A nil open uses OpenSerial.
func NewSerial(port string, baudRate int, open OpenFunc) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if open == nil {
		open = OpenSerial
	}
	return &Serial{port: port, baudRate: baudRate, open: open}
}

// Connect opens the port and starts reading responses.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	conn, err := d.open(d.port, d.baudRate)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", d.port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = conn
	d.cancel = cancel
	d.lines = make(chan string, DefaultBufferSize)
	d.connected = true

	go readLines(ctx, conn, d.lines)

	return nil
}

// Close closes the port and stops the reader.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()
	if err := d.conn.Close(); err != nil {
		log.Errorf("error closing serial port: %v", err)
	}
	d.conn = nil
	d.connected = false

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Request writes line and waits for the response.
func (d *Serial) Request(ctx context.Context, line string) (string, error) {
	d.reqMu.Lock()
	defer d.reqMu.Unlock()

	d.mu.RLock()
	conn, lines, connected := d.conn, d.lines, d.connected
	d.mu.RUnlock()
	if !connected {
		return "", ErrNotConnected
	}

	drain(lines)
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return "", errors.Wrapf(err, "failed to send %q", line)
	}
	return await(ctx, lines)
}
