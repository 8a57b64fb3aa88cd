package sensor

import "github.com/itohio/govalve/pkg/valve"

// ADC is a single analog input. machine.ADC implements it.
type ADC interface {
	Get() uint16
}

var _ valve.BackEmfSensor = (*BackEmf)(nil)

// BackEmf reads the back-EMF divider of each axis from its own ADC input.
type BackEmf struct {
	channels [valve.NumAxes]ADC
	shift    uint8
}

// NewBackEmf uses channels in axis order, starting at axis 1.
func NewBackEmf(cfg Config, channels ...ADC) *BackEmf {
	b := &BackEmf{shift: cfg.BackEmfShift}
	copy(b.channels[:], channels)
	return b
}

func (b *BackEmf) ReadBackEmf(axis uint8) (uint16, error) {
	if axis < 1 || axis > valve.NumAxes || b.channels[axis-1] == nil {
		return 0, valve.ErrAxisRange
	}
	return b.channels[axis-1].Get() >> b.shift, nil
}
