package valve

// lowPass is a first-order IIR filter with alpha = 2^-shift:
// y += (u - y) >> shift.
func lowPass(y, u int32, shift uint8) int32 {
	return y + (u-y)>>shift
}

// isMinimum reports whether the history shows a falling then rising slope,
// the shape of a commutator ripple valley.
func (h *History) isMinimum() bool {
	f1a, f1b := h.Slopes()
	return f1a < 0 && f1b > 0 && f1a < f1b
}

// detectZeroCross evaluates the history after a push. On a debounced minimum
// the debounce counter restarts and true is returned; otherwise the counter
// advances up to its cap.
func (s *SensingState) detectZeroCross(debounce uint8) bool {
	if s.History.isMinimum() && s.DebounceCounter > debounce {
		s.DebounceCounter = 0
		return true
	}
	if s.DebounceCounter < debounceCap {
		s.DebounceCounter++
	}
	return false
}

// countZeroCross adds the travel direction to the axis count, never going
// below zero.
func (a *AxisState) countZeroCross(dir Direction) {
	n := int32(a.ZeroCrossCount) + int32(dir)
	switch {
	case n < 0:
		n = 0
	case n > maxZeroCrossings:
		n = maxZeroCrossings
	}
	a.ZeroCrossCount = int16(n)
}

func (s *SensingState) reset() {
	*s = SensingState{}
}
