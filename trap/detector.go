package trap

import (
	"gonum.org/v1/gonum/floats"
)

// Default confinement parameters.
const (
	DefaultWindow = 100 // minimum trap duration in steps
	DefaultSize   = 0.1 // max axis span, same units as position
)

// Verdict is the detector output for one step.
type Verdict struct {
	Trapped    bool
	Cumulative int // total steps ever judged trapped this run
}

// Detector applies a sliding-window confinement test to the prey history.
//
// The prey is trapped at a step when more than Window samples exist and the
// last Window samples span less than Size on both axes. Cumulative counts
// every trapped step of the run; it does not restart when the prey escapes.
type Detector struct {
	Window int
	Size   float64

	cumulative int
}

// NewDetector creates a detector with the default window and trap size.
func NewDetector() *Detector {
	return &Detector{Window: DefaultWindow, Size: DefaultSize}
}

// Update judges the current step from the full history (current sample
// included) and advances the cumulative count.
func (d *Detector) Update(xs, ys []float64) Verdict {
	trapped := d.confined(xs, ys)
	if trapped {
		d.cumulative++
	}
	return Verdict{Trapped: trapped, Cumulative: d.cumulative}
}

// confined reports whether the trailing window fits inside a Size x Size box.
// A Window below 1 falls back to DefaultWindow.
func (d *Detector) confined(xs, ys []float64) bool {
	window := d.Window
	if window < 1 {
		window = DefaultWindow
	}

	n := len(xs)
	if n <= window || len(ys) != n {
		return false
	}

	wx := xs[n-window:]
	wy := ys[n-window:]
	deltaX := floats.Max(wx) - floats.Min(wx)
	deltaY := floats.Max(wy) - floats.Min(wy)

	return deltaX < d.Size && deltaY < d.Size
}

// Cumulative returns the running total of trapped steps.
func (d *Detector) Cumulative() int {
	return d.cumulative
}

// Reset clears the cumulative count.
func (d *Detector) Reset() {
	d.cumulative = 0
}
