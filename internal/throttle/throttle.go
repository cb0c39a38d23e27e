// Package throttle caps the number of messages forwarded for one job.
package throttle

// Throttle counts forwarded messages against a budget. A zero or negative
// budget never exhausts.
type Throttle struct {
	max   int
	count int
}

// New returns a Throttle allowing max messages.
func New(max int) *Throttle {
	return &Throttle{max: max}
}

// Record counts one forwarded message and reports whether the budget is
// now exhausted.
func (t *Throttle) Record() bool {
	t.count++
	return t.Exhausted()
}

// Exhausted reports whether the budget has been reached.
func (t *Throttle) Exhausted() bool {
	return t.max > 0 && t.count >= t.max
}

// recorded returns the number of recorded messages.
func (t *Throttle) recorded() int { return t.count }

// Max returns the budget, 0 meaning unbounded.
func (t *Throttle) Max() int {
	if t.max < 0 {
		return 0
	}
	return t.max
}
