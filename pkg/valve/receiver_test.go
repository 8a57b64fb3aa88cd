package valve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(r *Receiver, s string) int {
	accepted := 0
	for i := 0; i < len(s); i++ {
		if r.RxByte(s[i]) {
			accepted++
		}
	}
	return accepted
}

func TestReceiver_Line(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"lf", "Status?\n", "Status?", true},
		{"cr", "Version?\r", "Version?", true},
		{"leading blank lines", "\r\n\n\rSetPos?\n", "SetPos?", true},
		{"single char fragment dropped", "x\nMove:1,2,3\n", "Move:1,2,3", true},
		{"unterminated", "Status?", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Receiver
			feed(&r, tt.input)
			line, ok := r.Take()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, line)
		})
	}
}

func TestReceiver_Backpressure(t *testing.T) {
	var r Receiver

	accepted := feed(&r, "Status?\r\n")
	assert.Equal(t, 8, accepted, "the byte after the terminator is refused")
	assert.True(t, r.Pending())

	assert.False(t, r.RxByte('X'))
	line, ok := r.Take()
	require.True(t, ok)
	assert.Equal(t, "Status?", line)

	r.Rearm()
	assert.False(t, r.Pending())
	assert.True(t, r.RxByte('\n'), "trailing LF is accepted and ignored")
	_, ok = r.Take()
	assert.False(t, ok)
}

func TestReceiver_Overflow(t *testing.T) {
	var r Receiver

	feed(&r, strings.Repeat("A", LineSize))
	assert.False(t, r.Pending())

	feed(&r, "B")
	feed(&r, "Status?\n")

	line, ok := r.Take()
	require.True(t, ok)
	assert.Equal(t, "Status?", line, "overflow flushes the buffer")
}
