// Package telemetry turns periodic Status? queries into a stream of samples
// and offers channel stages to smooth and thin that stream.
package telemetry

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/govalve/pkg/client"
	"github.com/itohio/govalve/pkg/valve"
)

// DefaultBufferSize is the default capacity of stage output channels.
const DefaultBufferSize = 100

// Sample is one decoded status report.
type Sample struct {
	Timestamp time.Time
	Positions [valve.NumAxes]int
	CurrentmA float64
	Word      uint16
}

// Status returns the sample as a client status.
func (s Sample) Status() client.Status {
	return client.Status{
		Positions: s.Positions,
		Current:   int(s.CurrentmA*10 + 0.5),
		Word:      s.Word,
	}
}

// StatusSource answers status queries. *client.Client satisfies it.
type StatusSource interface {
	Status(ctx context.Context) (client.Status, error)
}

// Converter is a stage of the sample pipeline.
type Converter func(in <-chan Sample) <-chan Sample

// Poll queries src every interval until ctx is done and emits a sample per
// successful answer. Failed queries are logged and skipped. The returned
// channel is closed when polling stops.
func Poll(ctx context.Context, src StatusSource, interval time.Duration, bufSize int) <-chan Sample {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	out := make(chan Sample, bufSize)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st, err := src.Status(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warnf("status poll failed: %v", err)
					continue
				}
				select {
				case out <- fromStatus(now, st):
				case <-ctx.Done():
					return
				default:
					log.Warn("telemetry output channel full, dropping sample")
				}
			}
		}
	}()

	return out
}

func fromStatus(ts time.Time, st client.Status) Sample {
	return Sample{
		Timestamp: ts,
		Positions: st.Positions,
		CurrentmA: st.CurrentmA(),
		Word:      st.Word,
	}
}
