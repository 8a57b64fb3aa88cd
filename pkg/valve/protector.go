package valve

// Protector trips when the filtered current stays above the axis limit for
// more than Debounce consecutive samples.
type Protector struct {
	Debounce uint8
}

// Check evaluates one filtered current sample against limit. It returns true
// exactly once per over-limit episode, on the sample that exceeds the
// debounce count.
func (p Protector) Check(s *SensingState, current, limit int16) bool {
	if current <= limit {
		s.OvercurrentStreak = 0
		s.tripReported = false
		return false
	}
	if s.OvercurrentStreak < 255 {
		s.OvercurrentStreak++
	}
	if s.OvercurrentStreak > p.Debounce && !s.tripReported {
		s.tripReported = true
		return true
	}
	return false
}
