package flywheel

import (
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
)

// Spinner is the flywheel capability: the launcher wheels must be up to
// speed before the trigger servo pulls.
type Spinner interface {
	On() hw.Result
	Off() hw.Result
}

// MOSFET switches the flywheel motors through a logic-level MOSFET gate
// (HIGH = spinning).
type MOSFET struct {
	gpio gpio.Driver
	pin  int
	on   bool
}

// NewMOSFET configures the gate pin as an output, flywheel off.
func NewMOSFET(g gpio.Driver, pin int) (*MOSFET, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("flywheel pin %d: %w", pin, err)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("flywheel pin %d: %w", pin, err)
	}
	return &MOSFET{gpio: g, pin: pin}, nil
}

// On spins the flywheel up.
func (m *MOSFET) On() hw.Result {
	return m.set(true)
}

// Off stops the flywheel.
func (m *MOSFET) Off() hw.Result {
	return m.set(false)
}

func (m *MOSFET) set(on bool) hw.Result {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := m.gpio.WritePin(m.pin, level); err != nil {
		debug.Error(fmt.Errorf("flywheel pin %d: %w", m.pin, err))
		return hw.HardwareFault
	}
	if m.on != on {
		state := "off"
		if on {
			state = "on"
		}
		debug.Verbose("Flywheel: %s", state)
	}
	m.on = on
	return hw.Ok
}

// Running reports whether the flywheel was last switched on.
func (m *MOSFET) Running() bool { return m.on }
