// Package trigger reads the engagement start button as a voltage.
package trigger

import (
	"fmt"
	"sync/atomic"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
)

// Input is a trigger input normalized to volts in [0, HighVolts].
type Input interface {
	Volts() float64
}

// Pressed reports whether the input reads at or above threshold volts.
func Pressed(in Input, threshold float64) bool {
	return in.Volts() >= threshold
}

// Pin reads the button through a digital GPIO input: HIGH reads as
// highVolts, LOW as 0.
type Pin struct {
	gpio      gpio.Driver
	pin       int
	highVolts float64
}

// NewPin configures pin as an input.
func NewPin(g gpio.Driver, pin int, highVolts float64) (*Pin, error) {
	if err := g.SetupPin(pin, gpio.Input); err != nil {
		return nil, fmt.Errorf("trigger pin %d: %w", pin, err)
	}
	return &Pin{gpio: g, pin: pin, highVolts: highVolts}, nil
}

func (p *Pin) Volts() float64 {
	lvl, err := p.gpio.ReadPin(p.pin)
	if err != nil {
		debug.Error(fmt.Errorf("trigger pin %d: %w", p.pin, err))
		return 0
	}
	if lvl == gpio.High {
		return p.highVolts
	}
	return 0
}

// Soft is a software button (web UI, tests). A press is latched until the
// next read.
type Soft struct {
	pending   atomic.Bool
	highVolts float64
}

// NewSoft creates a software button reporting highVolts when pressed.
func NewSoft(highVolts float64) *Soft {
	return &Soft{highVolts: highVolts}
}

// Press latches one press. Safe to call from any goroutine.
func (s *Soft) Press() {
	s.pending.Store(true)
	debug.Live("Soft trigger pressed")
}

func (s *Soft) Volts() float64 {
	if s.pending.Swap(false) {
		return s.highVolts
	}
	return 0
}

// Any combines inputs, reading the highest voltage. Every input is read on
// each call so latched presses are consumed.
type Any []Input

func (a Any) Volts() float64 {
	v := 0.0
	for _, in := range a {
		if x := in.Volts(); x > v {
			v = x
		}
	}
	return v
}
