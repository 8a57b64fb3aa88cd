package valve

import "sync/atomic"

const (
	maxPosition      = 100
	maxMoveLimit     = 2000
	maxHomeLimit     = 1000
	historyLen       = 5
	debounceCap      = 127
	maxZeroCrossings = 1<<15 - 1
)

// AxisState is the per-axis intent and estimate.
type AxisState struct {
	Setpoint       uint8
	Position       uint8
	CurrentLimit   int16 // tenths of mA
	Referenced     bool
	ZeroCrossCount int16
}

// ControllerStatus holds the arbitration flags of the controller.
type ControllerStatus struct {
	ActiveAxis        uint8
	MoveActive        bool
	HomeActive        bool
	BootloadRequested bool
}

// Status word bits reported by the Status? query.
const (
	StatusReferencedShift = 0
	StatusActiveShift     = 4
	StatusMove            = 1 << 8
	StatusHome            = 1 << 9
	StatusBootload        = 1 << 10
)

// StatusWord packs the referenced set, one-hot active axis and the activity
// flags into 16 bits.
func StatusWord(st ControllerStatus, axes *[NumAxes]AxisState) uint16 {
	var w uint16
	for i := range axes {
		if axes[i].Referenced {
			w |= 1 << (StatusReferencedShift + i)
		}
	}
	if st.ActiveAxis >= 1 && st.ActiveAxis <= NumAxes {
		w |= 1 << (StatusActiveShift + st.ActiveAxis - 1)
	}
	if st.MoveActive {
		w |= StatusMove
	}
	if st.HomeActive {
		w |= StatusHome
	}
	if st.BootloadRequested {
		w |= StatusBootload
	}
	return w
}

// ErrorFlag is one latched fault.
type ErrorFlag uint8

const (
	ChecksumError       ErrorFlag = 1 << 0
	UnexpectedInterrupt ErrorFlag = 1 << 1
	Overcurrent         ErrorFlag = 1 << 2
)

// ErrorFlags is a set of latched faults, safe to set from any execution tier.
type ErrorFlags struct {
	bits atomic.Uint32
}

func (e *ErrorFlags) Latch(f ErrorFlag) {
	for {
		old := e.bits.Load()
		if e.bits.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

func (e *ErrorFlags) Has(f ErrorFlag) bool { return e.bits.Load()&uint32(f) != 0 }

func (e *ErrorFlags) Clear() { e.bits.Store(0) }

// Bits returns the flags in the layout of the Errors? query.
func (e *ErrorFlags) Bits() uint8 { return uint8(e.bits.Load()) }

// History holds the last five coarse back-EMF values, oldest first.
type History [historyLen]uint8

// Push shifts the history by one and appends v as the newest value.
func (h *History) Push(v uint8) {
	copy(h[:], h[1:])
	h[historyLen-1] = v
}

// Slopes returns the two first-order differences used for minimum detection.
func (h *History) Slopes() (f1a, f1b int) {
	f1a = int(h[2]) - (int(h[0])+int(h[1]))>>1
	f1b = int(h[4]) - (int(h[2])+int(h[3]))>>1
	return f1a, f1b
}

// SensingState is the filter memory of the axis being driven.
type SensingState struct {
	FilteredCurrent   int16 // tenths of mA
	FilteredBackEmf   uint16
	History           History
	DebounceCounter   uint8
	OvercurrentStreak uint8

	tripReported bool
}

// State is the complete controller state.
type State struct {
	Axes    [NumAxes]AxisState
	Status  ControllerStatus
	Sensing SensingState
	Errors  ErrorFlags
}

// axis returns the state of axis id 1..NumAxes, or nil.
func (s *State) axis(id uint8) *AxisState {
	if id < 1 || id > NumAxes {
		return nil
	}
	return &s.Axes[id-1]
}
