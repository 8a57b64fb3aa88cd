package client

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/govalve/pkg/config"
	"github.com/itohio/govalve/pkg/sim"
)

// Loopback runs a simulated controller in-process and talks to it through
// its line receiver, exactly like a serial peer would.
type Loopback struct {
	cfg *config.Config

	reqMu     sync.Mutex
	mu        sync.RWMutex
	bench     *sim.Bench
	lines     chan string
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewLoopback creates a simulated device. A nil cfg uses the defaults.
func NewLoopback(cfg *config.Config) *Loopback {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Loopback{cfg: cfg}
}

// Connect builds the simulated board and starts the controller.
func (l *Loopback) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return ErrAlreadyConnected
	}

	lines := make(chan string, DefaultBufferSize)
	bench, err := sim.NewBench(l.cfg, &lineWriter{lines: lines}, log.StandardLogger())
	if err != nil {
		return errors.Wrap(err, "failed to build simulator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := bench.Run(ctx); err != nil {
			log.Errorf("simulator stopped: %v", err)
		}
	}()

	l.bench, l.lines = bench, lines
	l.cancel, l.done = cancel, done
	l.connected = true
	return nil
}

// Close stops the simulated controller.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return nil
	}
	l.cancel()
	done := l.done
	l.connected = false
	l.mu.Unlock()

	<-done
	return nil
}

// IsConnected returns whether the simulator is running.
func (l *Loopback) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

// Bench exposes the simulated board, nil before Connect.
func (l *Loopback) Bench() *sim.Bench {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bench
}

// Request feeds line into the controller and waits for the response.
func (l *Loopback) Request(ctx context.Context, line string) (string, error) {
	l.reqMu.Lock()
	defer l.reqMu.Unlock()

	l.mu.RLock()
	bench, lines, connected := l.bench, l.lines, l.connected
	l.mu.RUnlock()
	if !connected {
		return "", ErrNotConnected
	}

	drain(lines)
	if err := bench.Feed(ctx, strings.NewReader(line+"\n")); err != nil {
		return "", errors.Wrapf(err, "failed to send %q", line)
	}
	return await(ctx, lines)
}

// lineWriter splits written bytes into lines.
type lineWriter struct {
	mu      sync.Mutex
	partial strings.Builder
	lines   chan<- string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		if b != '\n' {
			w.partial.WriteByte(b)
			continue
		}
		line := w.partial.String()
		w.partial.Reset()
		select {
		case w.lines <- line:
		default:
			log.Warnf("response buffer full, dropping %q", line)
		}
	}
	return len(p), nil
}
