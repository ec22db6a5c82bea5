// Package quadrature decodes an A/B encoder by polling two GPIO inputs and
// exposes the result as a wrapping hardware-style counter.
package quadrature

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
)

// steps maps (previous AB << 2 | current AB) to a count delta. Transitions
// that skip a state are counted as errors and ignored.
var steps = [16]int8{
	0, 1, -1, 0,
	-1, 0, 0, 1,
	1, 0, 0, -1,
	0, -1, 1, 0,
}

func skipped(idx uint8) bool {
	return idx == 0b0011 || idx == 0b0110 || idx == 0b1001 || idx == 0b1100
}

// Decoder is an x4 quadrature decoder counting in [0, period].
type Decoder struct {
	gpio   gpio.Driver
	pinA   int
	pinB   int
	period uint32
	count  atomic.Uint32
	errs   atomic.Uint64
	state  uint8
}

// NewDecoder configures both pins as inputs and samples the initial state.
func NewDecoder(g gpio.Driver, pinA, pinB int, period uint32) (*Decoder, error) {
	for _, pin := range []int{pinA, pinB} {
		if err := g.SetupPin(pin, gpio.Input); err != nil {
			return nil, fmt.Errorf("encoder pin %d: %w", pin, err)
		}
	}
	d := &Decoder{gpio: g, pinA: pinA, pinB: pinB, period: period}
	st, err := d.read()
	if err != nil {
		return nil, err
	}
	d.state = st
	return d, nil
}

func (d *Decoder) read() (uint8, error) {
	a, err := d.gpio.ReadPin(d.pinA)
	if err != nil {
		return 0, fmt.Errorf("encoder pin %d: %w", d.pinA, err)
	}
	b, err := d.gpio.ReadPin(d.pinB)
	if err != nil {
		return 0, fmt.Errorf("encoder pin %d: %w", d.pinB, err)
	}
	var st uint8
	if a == gpio.High {
		st |= 2
	}
	if b == gpio.High {
		st |= 1
	}
	return st, nil
}

// Sample reads both channels once and updates the counter.
func (d *Decoder) Sample() error {
	st, err := d.read()
	if err != nil {
		return err
	}
	idx := d.state<<2 | st
	d.state = st
	if skipped(idx) {
		d.errs.Add(1)
		return nil
	}
	switch steps[idx] {
	case 1:
		c := d.count.Load()
		if c >= d.period {
			c = 0
		} else {
			c++
		}
		d.count.Store(c)
	case -1:
		c := d.count.Load()
		if c == 0 {
			c = d.period
		} else {
			c--
		}
		d.count.Store(c)
	}
	return nil
}

// Run samples every interval until ctx is done. Only one Run may be active.
func (d *Decoder) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			debug.Verbose("Encoder decoder stopped (%d skipped transitions)", d.Errors())
			return ctx.Err()
		case <-t.C:
			if err := d.Sample(); err != nil {
				debug.Error(err)
			}
		}
	}
}

// Count returns the current counter value.
func (d *Decoder) Count() uint32 { return d.count.Load() }

// Period returns the counter maximum value.
func (d *Decoder) Period() uint32 { return d.period }

// Errors returns the number of skipped (invalid) transitions seen.
func (d *Decoder) Errors() uint64 { return d.errs.Load() }
