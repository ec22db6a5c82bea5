package ticks

import (
	"sync/atomic"
	"time"
)

// Clock is the tick source driving the scheduler.
type Clock interface {
	Now() Ticks
}

// Monotonic derives ticks from the process monotonic clock.
type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a clock whose tick 0 is the moment of creation.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns milliseconds since creation, wrapped to 32 bits.
func (m *Monotonic) Now() Ticks {
	return Ticks(uint32(time.Since(m.start).Milliseconds()))
}

// Manual is a clock advanced explicitly, for tests and simulations.
// It is safe to read from other goroutines while one goroutine advances it.
type Manual struct {
	now atomic.Uint32
}

// NewManual returns a manual clock positioned at start.
func NewManual(start Ticks) *Manual {
	m := &Manual{}
	m.now.Store(uint32(start))
	return m
}

// Now returns the current tick.
func (m *Manual) Now() Ticks {
	return Ticks(m.now.Load())
}

// Set moves the clock to t.
func (m *Manual) Set(t Ticks) {
	m.now.Store(uint32(t))
}

// Advance moves the clock forward by ms milliseconds and returns the new tick.
func (m *Manual) Advance(ms int32) Ticks {
	return Ticks(m.now.Add(uint32(ms)))
}
