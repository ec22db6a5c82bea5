package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/PanTurret/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input, output or hardware PWM.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case PWM:
		return "pwm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetPWM sets a PWM pin's frequency and duty cycle (0.0-1.0).
	SetPWM(pin int, freqHz int, duty float64) error
	Close() error
}

// MockDriver is a test implementation that logs actions and remembers
// pin levels and duty cycles. Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	modes  map[int]PinMode
	duty   map[int]float64
	freq   map[int]int
}

// NewMockDriver creates an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels: make(map[int]Level),
		modes:  make(map[int]PinMode),
		duty:   make(map[int]float64),
		freq:   make(map[int]int),
	}
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) SetPWM(pin int, freqHz int, duty float64) error {
	debug.GPIO("SetPWM", pin, fmt.Sprintf("%dHz %.4f", freqHz, duty))
	if duty < 0 || duty > 1 {
		return fmt.Errorf("pwm duty %.4f out of [0,1] on pin %d", duty, pin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freq[pin] = freqHz
	m.duty[pin] = duty
	return nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

// Set forces an input level, as if driven externally.
func (m *MockDriver) Set(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// Level returns the last level written to or forced on pin.
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

// Duty returns the last PWM duty cycle set on pin.
func (m *MockDriver) Duty(pin int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty[pin]
}

// Freq returns the last PWM frequency set on pin.
func (m *MockDriver) Freq(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freq[pin]
}

// Mode returns the mode pin was set up with.
func (m *MockDriver) Mode(pin int) (PinMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[pin]
	return mode, ok
}
