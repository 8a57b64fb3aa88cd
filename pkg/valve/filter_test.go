package valve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowPass(t *testing.T) {
	tests := []struct {
		name  string
		y, u  int32
		shift uint8
		want  int32
	}{
		{"half way up", 0, 100, 1, 50},
		{"half way down", 100, 0, 1, 50},
		{"quarter", 0, 100, 2, 25},
		{"negative step rounds down", 10, 7, 1, 8},
		{"no shift follows input", 3, 900, 0, 900},
		{"steady", 42, 42, 3, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lowPass(tt.y, tt.u, tt.shift))
		})
	}
}

func TestLowPass_Converges(t *testing.T) {
	var y int32
	for i := 0; i < 20; i++ {
		y = lowPass(y, 1000, 1)
	}
	assert.InDelta(t, 1000, y, 1)
}

func TestHistory_Push(t *testing.T) {
	var h History
	for v := uint8(1); v <= 7; v++ {
		h.Push(v)
	}
	assert.Equal(t, History{3, 4, 5, 6, 7}, h)
}

func TestHistory_Slopes(t *testing.T) {
	h := History{10, 10, 4, 6, 12}
	f1a, f1b := h.Slopes()
	assert.Equal(t, -6, f1a)
	assert.Equal(t, 7, f1b)
	assert.True(t, h.isMinimum())

	flat := History{5, 5, 5, 5, 5}
	assert.False(t, flat.isMinimum())

	rising := History{1, 2, 3, 4, 5}
	assert.False(t, rising.isMinimum())
}

func TestDetectZeroCross_Debounce(t *testing.T) {
	s := SensingState{History: History{10, 10, 4, 6, 12}}

	for i := 0; i < 3; i++ {
		assert.False(t, s.detectZeroCross(3), "sample %d is within debounce", i)
	}
	assert.Equal(t, uint8(3), s.DebounceCounter)

	s.DebounceCounter = 4
	assert.True(t, s.detectZeroCross(3))
	assert.Equal(t, uint8(0), s.DebounceCounter)
}

func TestDetectZeroCross_CounterCap(t *testing.T) {
	s := SensingState{}
	for i := 0; i < 300; i++ {
		s.detectZeroCross(3)
	}
	assert.Equal(t, uint8(debounceCap), s.DebounceCounter)
}

func TestCountZeroCross_Saturates(t *testing.T) {
	a := AxisState{ZeroCrossCount: 1}
	a.countZeroCross(Close)
	assert.Equal(t, int16(0), a.ZeroCrossCount)
	a.countZeroCross(Close)
	assert.Equal(t, int16(0), a.ZeroCrossCount, "count never goes negative")

	a.countZeroCross(Open)
	a.countZeroCross(Open)
	assert.Equal(t, int16(2), a.ZeroCrossCount)

	a.ZeroCrossCount = maxZeroCrossings
	a.countZeroCross(Open)
	assert.Equal(t, int16(maxZeroCrossings), a.ZeroCrossCount)
}
