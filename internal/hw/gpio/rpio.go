package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// pwmClockHz is the PWM clock shared by both hardware channels. Each pin's
// cycle length is derived from it so servo (50 Hz) and motor (1 kHz) can
// run side by side.
const pwmClockHz = 1_000_000

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	mu   sync.RWMutex
	pins map[int]rpio.Pin
	pwm  map[int]int // pin -> configured frequency
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root
// (root is needed for hardware PWM).
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins: make(map[int]rpio.Pin),
		pwm:  make(map[int]int),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	r.mu.Lock()
	r.pins[pin] = p
	r.mu.Unlock()

	switch mode {
	case Input:
		p.Input()
		p.PullDown()
	case Output:
		p.Output()
	case PWM:
		p.Pwm()
		p.Freq(pwmClockHz)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

// pin returns a configured pin, setting it up in mode on first use. The
// quadrature poller reads pins from its own goroutine.
func (r *RPiDriver) pin(pin int, mode PinMode) (rpio.Pin, error) {
	r.mu.RLock()
	p, ok := r.pins[pin]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}
	if err := r.SetupPin(pin, mode); err != nil {
		return 0, err
	}
	return rpio.Pin(pin), nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	// Pin not setup yet, setup as output
	p, err := r.pin(pin, Output)
	if err != nil {
		return err
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	// Pin not setup yet, setup as input
	p, err := r.pin(pin, Input)
	if err != nil {
		return Low, err
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) SetPWM(pin int, freqHz int, duty float64) error {
	debug.GPIO("SetPWM", pin, fmt.Sprintf("%dHz %.4f", freqHz, duty))

	if freqHz <= 0 || freqHz > pwmClockHz {
		return fmt.Errorf("pwm frequency %d Hz out of range on pin %d", freqHz, pin)
	}
	if duty < 0 || duty > 1 {
		return fmt.Errorf("pwm duty %.4f out of [0,1] on pin %d", duty, pin)
	}
	p, err := r.pin(pin, PWM)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.pwm[pin] = freqHz
	r.mu.Unlock()

	cycle := uint32(pwmClockHz / freqHz)
	p.DutyCycle(uint32(duty*float64(cycle)), cycle)
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	r.mu.Lock()
	defer r.mu.Unlock()

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		if _, isPWM := r.pwm[pin]; isPWM {
			p.DutyCycle(0, 1)
		}
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
