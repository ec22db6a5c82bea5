// Package encoder turns a wrapping quadrature hardware counter into an
// unbounded signed position.
package encoder

import "math"

// Counter is a free-running hardware counter fed by a quadrature decoder.
// It counts from 0 to Period() inclusive and wraps in both directions.
type Counter interface {
	Count() uint32
	Period() uint32
}

// Tracker integrates counter deltas into a cumulative position.
// It must be read at least once per half counter span of travel, otherwise a
// wrap cannot be told apart from motion in the opposite direction.
type Tracker struct {
	counter Counter
	cpr     int
	prev    uint32
	total   int64
}

// NewTracker creates a tracker whose position 0 is the counter's current value.
// cpr is the encoder's lines per revolution (before x4 decoding).
func NewTracker(c Counter, cpr int) *Tracker {
	if cpr <= 0 {
		cpr = 1
	}
	return &Tracker{
		counter: c,
		cpr:     cpr,
		prev:    c.Count(),
	}
}

// ReadPosition samples the counter, adds the unwrapped delta since the last
// sample to the cumulative total, and returns the total.
func (t *Tracker) ReadPosition() int64 {
	raw := t.counter.Count()
	t.total += unwrap(raw, t.prev, t.counter.Period())
	t.prev = raw
	return t.total
}

// unwrap returns raw-prev corrected for a single counter wrap.
// A jump of half the span or more is taken as a wrap in the other direction.
func unwrap(raw, prev, period uint32) int64 {
	span := int64(period) + 1
	delta := int64(raw) - int64(prev)
	switch {
	case 2*delta <= -span: // wrapped forward past Period
		return span + delta
	case 2*delta >= span: // wrapped backward past 0
		return delta - span
	default:
		return delta
	}
}

// Position returns the cumulative total from the last read without sampling.
func (t *Tracker) Position() int64 {
	return t.total
}

// Angle converts the cumulative total to radians (4 counts per encoder line).
func (t *Tracker) Angle() float64 {
	return float64(t.total) * 2 * math.Pi / float64(t.cpr*4)
}

// ReadAngle samples the counter and returns the position in radians.
func (t *Tracker) ReadAngle() float64 {
	t.ReadPosition()
	return t.Angle()
}

// Zero clears the cumulative total. The previous raw sample is kept so the
// next delta is still measured against the counter's actual value.
func (t *Tracker) Zero() {
	t.total = 0
}
