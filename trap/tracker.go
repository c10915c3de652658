// Package trap decides whether the tracked prey is confined by predators.
package trap

// Tracker holds the prey's position history in step order.
// History grows for the whole run; the detector only reads the tail.
type Tracker struct {
	xs []float64
	ys []float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordStep appends the prey position observed this step.
func (t *Tracker) RecordStep(x, y float64) {
	t.xs = append(t.xs, x)
	t.ys = append(t.ys, y)
}

// Len returns the number of recorded samples.
func (t *Tracker) Len() int {
	return len(t.xs)
}

// History returns the recorded coordinates as parallel slices.
// The slices are shared with the tracker and must not be modified.
func (t *Tracker) History() (xs, ys []float64) {
	return t.xs, t.ys
}

// Last returns the most recent sample, or ok=false if nothing was recorded.
func (t *Tracker) Last() (x, y float64, ok bool) {
	n := len(t.xs)
	if n == 0 {
		return 0, 0, false
	}
	return t.xs[n-1], t.ys[n-1], true
}
