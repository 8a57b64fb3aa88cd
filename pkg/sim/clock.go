package sim

import (
	"context"
	"time"

	"github.com/itohio/govalve/pkg/valve"
)

// Clock is a TimerSource backed by time.Ticker.
type Clock struct{}

var _ valve.TimerSource = Clock{}

func (Clock) Every(ctx context.Context, period time.Duration, fn func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
