package telemetry

import (
	log "github.com/sirupsen/logrus"
)

// NewAveragingConverter smooths the motor current over the last windowSize
// samples. Positions and the status word are passed through from the most
// recent sample.
func NewAveragingConverter(windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			window := make([]float64, 0, windowSize)
			var sum float64
			for s := range in {
				if len(window) == windowSize {
					sum -= window[0]
					window = window[1:]
				}
				window = append(window, s.CurrentmA)
				sum += s.CurrentmA

				s.CurrentmA = sum / float64(len(window))
				select {
				case out <- s:
				default:
					log.Warn("averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// NewChangeFilter forwards only samples whose positions or status word
// differ from the previously forwarded one. The first sample always passes.
func NewChangeFilter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var last Sample
			first := true
			for s := range in {
				if !first && s.Positions == last.Positions && s.Word == last.Word {
					continue
				}
				first = false
				last = s
				out <- s
			}
		}()

		return out
	}
}
