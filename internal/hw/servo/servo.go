package servo

import (
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
)

// Positioner is the trigger servo capability.
type Positioner interface {
	SetAngle(angle float64) hw.Result
	SetDeflection(delta float64) hw.Result
}

// Config holds the servo configuration.
type Config struct {
	Pin        int
	ZeroAngle  float64 // reference for SetDeflection
	RangeDeg   float64 // mechanical range, angles are valid in [0, RangeDeg]
	MinPulseUs int     // pulse at 0 degrees
	MaxPulseUs int     // pulse at RangeDeg
	PWMFreqHz  int
}

// Servo drives a hobby servo with hardware PWM.
type Servo struct {
	gpio  gpio.Driver
	cfg   Config
	angle float64
}

// NewServo validates the configuration, then moves the servo to its zero angle.
func NewServo(g gpio.Driver, cfg Config) (*Servo, error) {
	if cfg.RangeDeg <= 0 {
		cfg.RangeDeg = 270
	}
	if cfg.PWMFreqHz <= 0 {
		cfg.PWMFreqHz = 50
	}
	if cfg.MinPulseUs >= cfg.MaxPulseUs {
		return nil, fmt.Errorf("servo pulse range invalid: %d-%d us", cfg.MinPulseUs, cfg.MaxPulseUs)
	}
	if cfg.ZeroAngle < 0 || cfg.ZeroAngle > cfg.RangeDeg {
		return nil, fmt.Errorf("servo zero_angle %.1f outside [0, %.0f]", cfg.ZeroAngle, cfg.RangeDeg)
	}
	if err := g.SetupPin(cfg.Pin, gpio.PWM); err != nil {
		return nil, fmt.Errorf("servo pin %d: %w", cfg.Pin, err)
	}
	s := &Servo{gpio: g, cfg: cfg}
	if res := s.SetAngle(cfg.ZeroAngle); res != hw.Ok {
		return nil, fmt.Errorf("servo initial position: %s", res)
	}
	debug.Info("Servo ready on pin %d, zero at %.1f°", cfg.Pin, cfg.ZeroAngle)
	return s, nil
}

// PulseUs returns the pulse width for an absolute angle.
func (s *Servo) PulseUs(angle float64) float64 {
	span := float64(s.cfg.MaxPulseUs - s.cfg.MinPulseUs)
	return angle*span/s.cfg.RangeDeg + float64(s.cfg.MinPulseUs)
}

// SetAngle moves to an absolute angle. Out-of-range angles are logged and
// leave the servo where it is.
func (s *Servo) SetAngle(angle float64) hw.Result {
	if angle < 0 || angle > s.cfg.RangeDeg {
		debug.Errorf("servo angle %.1f outside [0, %.0f], ignored", angle, s.cfg.RangeDeg)
		return hw.OutOfRange
	}
	periodUs := 1e6 / float64(s.cfg.PWMFreqHz)
	if err := s.gpio.SetPWM(s.cfg.Pin, s.cfg.PWMFreqHz, s.PulseUs(angle)/periodUs); err != nil {
		debug.Error(fmt.Errorf("servo angle %.1f: %w", angle, err))
		return hw.HardwareFault
	}
	s.angle = angle
	debug.Trace("Servo at %.1f°", angle)
	return hw.Ok
}

// SetDeflection moves relative to the configured zero angle.
func (s *Servo) SetDeflection(delta float64) hw.Result {
	target := s.cfg.ZeroAngle + delta
	if target < 0 || target > s.cfg.RangeDeg {
		debug.Errorf("servo deflection %.1f exceeds limits (zero %.1f), ignored", delta, s.cfg.ZeroAngle)
		return hw.OutOfRange
	}
	return s.SetAngle(target)
}

// Angle returns the last commanded absolute angle.
func (s *Servo) Angle() float64 { return s.angle }
