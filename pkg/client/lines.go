package client

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the default size of the response line buffer.
const DefaultBufferSize = 16

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// readLines scans r and forwards non-empty lines until ctx is done or r fails.
// The lines channel is closed on return.
func readLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic in line reader: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		default:
			log.Warnf("response buffer full, dropping %q", line)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Errorf("error reading responses: %v", err)
	}
}

// drain discards stale responses left over from timed out requests.
func drain(lines <-chan string) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			log.Debugf("discarding stale response %q", line)
		default:
			return
		}
	}
}

// await returns the next response line.
func await(ctx context.Context, lines <-chan string) (string, error) {
	select {
	case line, ok := <-lines:
		if !ok {
			return "", errors.Wrap(io.ErrUnexpectedEOF, "connection closed")
		}
		return line, nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "no response")
	}
}
