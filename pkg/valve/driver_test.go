package valve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestDriver() (*MotorDriver, *fakeHardware, *recordingLogger) {
	hw := &fakeHardware{}
	log := &recordingLogger{}
	return newMotorDriver(hw, &critical{}, log, time.Millisecond, nil), hw, log
}

func TestMotorDriver_Set(t *testing.T) {
	tests := []struct {
		name      string
		dir       Direction
		wantOpen  bool
		wantClose bool
		wantArmed Direction
	}{
		{"open", Open, true, false, Open},
		{"close", Close, false, true, Close},
		{"stop", Stop, false, false, Stop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hw, _ := newTestDriver()
			d.Set(2, tt.dir)

			assert.Equal(t, channelState{tt.wantOpen, tt.wantClose}, hw.channel(2))
			_, armed := hw.armed()
			assert.Equal(t, tt.wantArmed, armed)

			axis, dir := d.Applied()
			assert.Equal(t, uint8(2), axis)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

func TestMotorDriver_WaitsBeforeDirectionChange(t *testing.T) {
	d, hw, _ := newTestDriver()

	d.Set(1, Open)
	assert.Equal(t, 1, hw.waits)

	d.Set(1, Open)
	assert.Equal(t, 1, hw.waits, "unchanged drive needs no sync")

	d.Set(1, Close)
	assert.Equal(t, 2, hw.waits, "reversal waits for the cycle end")

	d.Set(1, Stop)
	assert.Equal(t, 2, hw.waits, "stopping is immediate")
}

func TestMotorDriver_SyncTimeoutProceeds(t *testing.T) {
	d, hw, log := newTestDriver()
	hw.syncFails = true

	d.Set(3, Close)

	assert.Equal(t, channelState{false, true}, hw.channel(3))
	assert.Equal(t, 1, log.count())
}

func TestMotorDriver_SwitchAxisReleasesPrevious(t *testing.T) {
	d, hw, _ := newTestDriver()

	d.Set(1, Open)
	d.Set(4, Close)

	assert.Equal(t, []uint8{4}, hw.driven())
	axis, dir := hw.armed()
	assert.Equal(t, uint8(4), axis)
	assert.Equal(t, Close, dir)
}

func TestMotorDriver_Idle(t *testing.T) {
	d, hw, _ := newTestDriver()
	d.Set(2, Open)

	d.Idle()

	assert.Empty(t, hw.driven())
	axis, _ := hw.armed()
	assert.Equal(t, uint8(0), axis)
	axis, dir := d.Applied()
	assert.Equal(t, uint8(0), axis)
	assert.Equal(t, Stop, dir)
}

func TestMotorDriver_StopLocked(t *testing.T) {
	d, hw, _ := newTestDriver()
	d.Set(2, Close)

	s := d.cs.enter()
	d.stopLocked()
	d.cs.exit(s)

	assert.Empty(t, hw.driven())
	axis, dir := d.Applied()
	assert.Equal(t, uint8(2), axis)
	assert.Equal(t, Stop, dir)
}

func TestMotorDriver_RefusesTrippedAxis(t *testing.T) {
	hw := &fakeHardware{}
	tripped := uint8(3)
	d := newMotorDriver(hw, &critical{}, &recordingLogger{}, time.Millisecond, func(axis uint8) bool {
		return axis == tripped
	})

	d.Set(3, Open)
	assert.Empty(t, hw.driven())
	axis, dir := d.Applied()
	assert.Equal(t, uint8(0), axis)
	assert.Equal(t, Stop, dir)

	d.Set(2, Close)
	assert.Equal(t, channelState{close: true}, hw.channel(2), "other axes are not affected")

	d.Set(3, Stop)
	assert.Empty(t, hw.driven(), "stopping is always allowed")
	axis, _ = d.Applied()
	assert.Equal(t, uint8(3), axis)
}
