package valve

import "sync/atomic"

// LineSize is the capacity of the receive buffer.
const LineSize = 48

// Receiver assembles bytes from the serial receive interrupt into one command
// line. After a complete line it refuses further bytes until the foreground
// consumed the line and called Rearm.
type Receiver struct {
	buf [LineSize]byte
	n   int

	request  atomic.Bool
	disabled atomic.Bool
}

// RxByte accepts one received byte. It returns false while reception is
// disabled; the caller keeps the byte and offers it again after Rearm.
func (r *Receiver) RxByte(b byte) bool {
	if r.disabled.Load() {
		return false
	}
	switch b {
	case '\r', '\n':
		if r.n < 2 {
			r.n = 0
			return true
		}
		r.disabled.Store(true)
		r.request.Store(true)
	default:
		if r.n == LineSize {
			r.n = 0
			return true
		}
		r.buf[r.n] = b
		r.n++
	}
	return true
}

// Pending reports whether a complete line waits for the foreground.
func (r *Receiver) Pending() bool { return r.request.Load() }

// Take returns the pending line, or false when there is none.
func (r *Receiver) Take() (string, bool) {
	if !r.request.Load() {
		return "", false
	}
	return string(r.buf[:r.n]), true
}

// Rearm drops the consumed line and re-enables reception.
func (r *Receiver) Rearm() {
	r.n = 0
	r.request.Store(false)
	r.disabled.Store(false)
}
