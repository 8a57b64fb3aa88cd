package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/govalve/pkg/client"
	"github.com/itohio/govalve/pkg/valve"
)

type countingSource struct {
	calls atomic.Int32
	fail  bool
}

func (s *countingSource) Status(ctx context.Context) (client.Status, error) {
	n := s.calls.Add(1)
	if s.fail && n%2 == 0 {
		return client.Status{}, errors.New("bus error")
	}
	return client.Status{
		Positions: [valve.NumAxes]int{int(n), 0, 0, 0},
		Current:   125,
		Word:      valve.StatusMove,
	}, nil
}

func TestPoll_EmitsSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &countingSource{}
	out := Poll(ctx, src, 2*time.Millisecond, 10)

	s := <-out
	assert.Equal(t, 1, s.Positions[0])
	assert.InDelta(t, 12.5, s.CurrentmA, 1e-9)
	assert.Equal(t, uint16(valve.StatusMove), s.Word)
	assert.False(t, s.Timestamp.IsZero())
	assert.Equal(t, 125, s.Status().Current)

	s = <-out
	assert.Equal(t, 2, s.Positions[0])
}

func TestPoll_SkipsFailedQueries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := Poll(ctx, &countingSource{fail: true}, time.Millisecond, 10)
	for i := 0; i < 3; i++ {
		s := <-out
		assert.Equal(t, 1, s.Positions[0]%2, "only odd calls succeed")
	}
}

func TestPoll_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := Poll(ctx, &countingSource{}, time.Millisecond, 1)

	<-out
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range out {
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not close its output")
	}
}

func feed(samples ...Sample) <-chan Sample {
	in := make(chan Sample, len(samples))
	for _, s := range samples {
		in <- s
	}
	close(in)
	return in
}

func collect(out <-chan Sample) []Sample {
	var got []Sample
	for s := range out {
		got = append(got, s)
	}
	return got
}

func TestAveragingConverter(t *testing.T) {
	out := NewAveragingConverter(3, 10)(feed(
		Sample{CurrentmA: 3},
		Sample{CurrentmA: 6},
		Sample{CurrentmA: 9},
		Sample{CurrentmA: 12, Word: 7},
	))

	got := collect(out)
	require.Len(t, got, 4)
	assert.InDelta(t, 3, got[0].CurrentmA, 1e-9)
	assert.InDelta(t, 4.5, got[1].CurrentmA, 1e-9)
	assert.InDelta(t, 6, got[2].CurrentmA, 1e-9)
	assert.InDelta(t, 9, got[3].CurrentmA, 1e-9)
	assert.Equal(t, uint16(7), got[3].Word)
}

func TestAveragingConverter_InvalidWindow(t *testing.T) {
	got := collect(NewAveragingConverter(0, 0)(feed(Sample{CurrentmA: 3}, Sample{CurrentmA: 5})))
	require.Len(t, got, 2)
	assert.InDelta(t, 5, got[1].CurrentmA, 1e-9)
}

func TestChangeFilter(t *testing.T) {
	a := Sample{Positions: [valve.NumAxes]int{1, 0, 0, 0}, CurrentmA: 1}
	b := Sample{Positions: [valve.NumAxes]int{1, 0, 0, 0}, CurrentmA: 2}
	c := Sample{Positions: [valve.NumAxes]int{2, 0, 0, 0}}
	d := Sample{Positions: [valve.NumAxes]int{2, 0, 0, 0}, Word: valve.StatusMove}

	got := collect(NewChangeFilter(0)(feed(a, b, c, c, d)))
	assert.Equal(t, []Sample{a, c, d}, got)
}

func TestDownsample(t *testing.T) {
	samples := make([]Sample, 10)
	for i := range samples {
		samples[i].Positions[0] = i
	}

	got := Downsample(nil, samples, 5)
	require.Len(t, got, 5)
	for i, s := range got {
		assert.Equal(t, i*2, s.Positions[0])
	}

	dst := make([]Sample, 0, 20)
	got = Downsample(dst, samples[:3], 5)
	assert.Len(t, got, 3)
	assert.Equal(t, 20, cap(got), "destination reused")

	assert.Len(t, Downsample(nil, samples, 0), 10)
}
