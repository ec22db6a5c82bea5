package motor

import (
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
)

// Drive is the pan drive capability.
type Drive interface {
	Enable() hw.Result
	Disable() hw.Result
	// SetDutyCycle sets a signed duty in percent; values outside
	// [-100, 100] are clamped.
	SetDutyCycle(level float64) hw.Result
}

// Config holds the hardware configuration for an L6206-style H-bridge.
type Config struct {
	EnablePin int // active HIGH
	In1Pin    int // PWM, positive direction
	In2Pin    int // PWM, negative direction
	PWMFreqHz int
}

// Motor drives a brushed DC motor through an H-bridge.
type Motor struct {
	gpio    gpio.Driver
	cfg     Config
	duty    float64
	enabled bool
}

// NewMotor creates a new motor controller. The bridge starts disabled with
// both inputs at 0% duty.
func NewMotor(g gpio.Driver, cfg Config) (*Motor, error) {
	if cfg.PWMFreqHz <= 0 {
		cfg.PWMFreqHz = 1000
	}
	if err := g.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
		return nil, fmt.Errorf("motor enable pin %d: %w", cfg.EnablePin, err)
	}
	if err := g.WritePin(cfg.EnablePin, gpio.Low); err != nil {
		return nil, fmt.Errorf("motor enable pin %d: %w", cfg.EnablePin, err)
	}
	for _, pin := range []int{cfg.In1Pin, cfg.In2Pin} {
		if err := g.SetupPin(pin, gpio.PWM); err != nil {
			return nil, fmt.Errorf("motor pwm pin %d: %w", pin, err)
		}
		if err := g.SetPWM(pin, cfg.PWMFreqHz, 0); err != nil {
			return nil, fmt.Errorf("motor pwm pin %d: %w", pin, err)
		}
	}
	debug.Info("Motor ready (EN=%d IN1=%d IN2=%d, %d Hz)", cfg.EnablePin, cfg.In1Pin, cfg.In2Pin, cfg.PWMFreqHz)
	return &Motor{gpio: g, cfg: cfg}, nil
}

// Clamp limits a duty level to [-100, 100].
func Clamp(level float64) float64 {
	switch {
	case level > 100:
		return 100
	case level < -100:
		return -100
	default:
		return level
	}
}

// SetDutyCycle drives IN1 for positive levels and IN2 for negative ones.
func (m *Motor) SetDutyCycle(level float64) hw.Result {
	level = Clamp(level)
	in1, in2 := 0.0, 0.0
	if level > 0 {
		in1 = level / 100
	} else {
		in2 = -level / 100
	}
	if err := m.gpio.SetPWM(m.cfg.In1Pin, m.cfg.PWMFreqHz, in1); err != nil {
		debug.Error(fmt.Errorf("motor duty %.1f: %w", level, err))
		return hw.HardwareFault
	}
	if err := m.gpio.SetPWM(m.cfg.In2Pin, m.cfg.PWMFreqHz, in2); err != nil {
		debug.Error(fmt.Errorf("motor duty %.1f: %w", level, err))
		return hw.HardwareFault
	}
	m.duty = level
	debug.Trace("Motor duty %.1f%%", level)
	return hw.Ok
}

// Enable turns on the bridge (EN=HIGH).
func (m *Motor) Enable() hw.Result {
	if err := m.gpio.WritePin(m.cfg.EnablePin, gpio.High); err != nil {
		debug.Error(fmt.Errorf("motor enable: %w", err))
		return hw.HardwareFault
	}
	m.enabled = true
	debug.Verbose("Motor enabled")
	return hw.Ok
}

// Disable cuts the drive (duty 0, EN=LOW). The motor freewheels.
func (m *Motor) Disable() hw.Result {
	res := m.SetDutyCycle(0)
	if err := m.gpio.WritePin(m.cfg.EnablePin, gpio.Low); err != nil {
		debug.Error(fmt.Errorf("motor disable: %w", err))
		return hw.HardwareFault
	}
	m.enabled = false
	debug.Verbose("Motor disabled")
	return res
}

// Duty returns the last applied duty level.
func (m *Motor) Duty() float64 { return m.duty }

// Enabled reports whether the bridge is enabled.
func (m *Motor) Enabled() bool { return m.enabled }
