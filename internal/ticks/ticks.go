// Package ticks implements wrapping millisecond tick arithmetic.
//
// Ticks behave like a free-running 32-bit hardware tick register: they roll
// over silently, so two instants must only ever be compared through Diff,
// never by subtracting or ordering raw values.
package ticks

import "time"

// Ticks is a millisecond counter that wraps at 2^32.
type Ticks uint32

// Add returns t advanced by ms milliseconds (ms may be negative).
func Add(t Ticks, ms int32) Ticks {
	return t + Ticks(ms)
}

// Diff returns a - b as a signed distance, correct across rollover as long
// as the two instants are less than 2^31 ms apart.
func Diff(a, b Ticks) int32 {
	return int32(a - b)
}

// Elapsed reports whether now has reached or passed deadline.
func Elapsed(now, deadline Ticks) bool {
	return Diff(now, deadline) >= 0
}

// Deadline is a one-shot millisecond window anchored at a tick.
// The zero value is disarmed.
type Deadline struct {
	end   Ticks
	armed bool
}

// Start arms the deadline to expire ms milliseconds after now.
func (d *Deadline) Start(now Ticks, ms int32) {
	d.end = Add(now, ms)
	d.armed = true
}

// Extend re-arms the deadline ms milliseconds after its previous end.
func (d *Deadline) Extend(ms int32) {
	d.end = Add(d.end, ms)
	d.armed = true
}

// Stop disarms the deadline.
func (d *Deadline) Stop() {
	d.armed = false
}

// Armed reports whether the deadline is running.
func (d *Deadline) Armed() bool {
	return d.armed
}

// Expired reports whether an armed deadline has elapsed at now.
func (d *Deadline) Expired(now Ticks) bool {
	return d.armed && Elapsed(now, d.end)
}

// End returns the tick at which the deadline expires.
func (d *Deadline) End() Ticks {
	return d.end
}

// Ms converts a duration to whole milliseconds for tick arithmetic.
func Ms(d time.Duration) int32 {
	return int32(d / time.Millisecond)
}
