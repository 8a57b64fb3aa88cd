package sim

import (
	"context"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/govalve/pkg/config"
	"github.com/itohio/govalve/pkg/sensor"
	"github.com/itohio/govalve/pkg/valve"
)

func quietConfig() *config.SimConfig {
	cfg := config.Default().Sim
	cfg.NoiseLevel = 0
	cfg.TravelTime = time.Second
	cfg.Positions = []float64{50, 0, 100, 20}
	return &cfg
}

func TestHardware_Travel(t *testing.T) {
	h := New(quietConfig())

	h.SetChannels(1, true, false)
	h.SetChannels(4, false, true)
	h.Advance(100 * time.Millisecond)

	assert.InDelta(t, 60, h.Position(1), 0.01)
	assert.InDelta(t, 10, h.Position(4), 0.01)
	assert.Equal(t, []uint8{1, 4}, h.Driven())

	h.Advance(time.Second)
	assert.Equal(t, float32(100), h.Position(1), "end stop")
	assert.Equal(t, float32(0), h.Position(4), "end stop")
}

func TestHardware_ShuntCurrent(t *testing.T) {
	tests := []struct {
		name  string
		axis  uint8
		open  bool
		close bool
		want  int16
	}{
		{"idle", 1, false, false, 0},
		{"running", 1, true, false, 150},
		{"stalled closed", 2, false, true, 600},
		{"stalled open", 3, true, false, 600},
		{"leaving the stop", 3, false, true, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(quietConfig())
			h.SetChannels(tt.axis, tt.open, tt.close)

			s := sensor.NewINA219(h, sensor.DefaultConfig())
			require.NoError(t, s.Configure())

			got, err := s.ReadCurrent()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHardware_BusErrors(t *testing.T) {
	cfg := quietConfig()
	cfg.BusErrorRate = 1
	h := New(cfg)

	s := sensor.NewINA219(h, sensor.DefaultConfig())
	_, err := s.ReadCurrent()
	assert.ErrorIs(t, err, valve.ErrSensorTimeout)

	assert.ErrorIs(t, h.Tx(0x41, []byte{1}, make([]byte, 2)), ErrNoDevice)
}

func TestHardware_BackEmf(t *testing.T) {
	cfg := quietConfig()
	h := New(cfg)
	b := sensor.NewBackEmf(sensor.DefaultConfig(), h.ADC(1), h.ADC(2), h.ADC(3), h.ADC(4))

	v, err := b.ReadBackEmf(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), v, "no back-EMF while the bridge is off")

	h.SetChannels(1, true, false)
	v, err = b.ReadBackEmf(1)
	require.NoError(t, err)
	want := float32(cfg.BemfLevel) + float32(cfg.RippleAmplitude)*math32.Sin(2*math32.Pi*50*float32(cfg.RipplePerPercent))
	assert.InDelta(t, want, float32(v), 1)

	h.SetChannels(2, false, true)
	v, err = b.ReadBackEmf(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), v, "a stalled motor does not turn")
}

type countingHandler struct {
	current chan struct{}
	bemf    chan struct{}
}

func (c *countingHandler) OnCurrentSample() {
	select {
	case c.current <- struct{}{}:
	default:
	}
}

func (c *countingHandler) OnBackEmfSample() {
	select {
	case c.bemf <- struct{}{}:
	default:
	}
}

func TestHardware_SamplingFollowsArming(t *testing.T) {
	cfg := quietConfig()
	cfg.PwmPeriod = time.Millisecond
	h := New(cfg)
	handler := &countingHandler{current: make(chan struct{}, 1), bemf: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.Start(ctx, handler))
	assert.ErrorIs(t, h.Start(ctx, handler), ErrRunning)

	select {
	case <-handler.current:
		t.Fatal("sampled while disarmed")
	case <-time.After(20 * time.Millisecond):
	}

	h.ArmSampling(1, valve.Open)
	select {
	case <-handler.current:
	case <-time.After(time.Second):
		t.Fatal("no current sample")
	}
	select {
	case <-handler.bemf:
	case <-time.After(time.Second):
		t.Fatal("no back-EMF sample")
	}
}

func TestHardware_WaitCycleEnd(t *testing.T) {
	cfg := quietConfig()
	cfg.PwmPeriod = 5 * time.Millisecond
	h := New(cfg)

	assert.True(t, h.WaitCycleEnd(time.Millisecond), "no generator, nothing to wait for")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.Start(ctx, &countingHandler{current: make(chan struct{}), bemf: make(chan struct{})}))

	assert.True(t, h.WaitCycleEnd(10*time.Millisecond))

	start := time.Now()
	h.WaitCycleEnd(0)
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}
