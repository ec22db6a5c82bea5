package servo

import (
	"errors"
	"math"
	"testing"

	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
)

type pwmDriver struct {
	gpio.Driver
	duty  map[int]float64
	calls int
	err   error
}

func newPWMDriver() *pwmDriver {
	return &pwmDriver{Driver: gpio.NewMockDriver(), duty: make(map[int]float64)}
}

func (d *pwmDriver) SetPWM(pin int, freqHz int, duty float64) error {
	if d.err != nil {
		return d.err
	}
	d.calls++
	d.duty[pin] = duty
	return nil
}

var testCfg = Config{Pin: 18, ZeroAngle: 80, RangeDeg: 270, MinPulseUs: 500, MaxPulseUs: 2500, PWMFreqHz: 50}

func TestNewServo_MovesToZero(t *testing.T) {
	drv := newPWMDriver()
	s, err := NewServo(drv, testCfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Angle() != 80 {
		t.Errorf("Angle() = %v, want 80", s.Angle())
	}
	// 80 deg -> 500 + 80*2000/270 us over a 20000 us period
	want := (500 + 80*2000.0/270) / 20000
	if math.Abs(drv.duty[18]-want) > 1e-9 {
		t.Errorf("duty = %v, want %v", drv.duty[18], want)
	}
}

func TestNewServo_RejectsBadZero(t *testing.T) {
	for _, zero := range []float64{-1, 271} {
		cfg := testCfg
		cfg.ZeroAngle = zero
		if _, err := NewServo(newPWMDriver(), cfg); err == nil {
			t.Errorf("zero_angle %v: expected error", zero)
		}
	}
}

func TestServo_PulseEndpoints(t *testing.T) {
	s, _ := NewServo(newPWMDriver(), testCfg)
	if s.PulseUs(0) != 500 || s.PulseUs(270) != 2500 {
		t.Errorf("pulse endpoints = %v/%v, want 500/2500", s.PulseUs(0), s.PulseUs(270))
	}
}

func TestServo_OutOfRangeLeavesStateUnchanged(t *testing.T) {
	drv := newPWMDriver()
	s, _ := NewServo(drv, testCfg)
	calls := drv.calls

	cases := []struct {
		name string
		run  func() hw.Result
	}{
		{"angle above range", func() hw.Result { return s.SetAngle(300) }},
		{"negative angle", func() hw.Result { return s.SetAngle(-5) }},
		{"deflection above range", func() hw.Result { return s.SetDeflection(191) }},
		{"deflection below zero", func() hw.Result { return s.SetDeflection(-81) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if res := tc.run(); res != hw.OutOfRange {
				t.Errorf("result = %v, want out of range", res)
			}
			if s.Angle() != 80 || drv.calls != calls {
				t.Error("rejected command must not move the servo")
			}
		})
	}
}

func TestServo_Deflection(t *testing.T) {
	s, _ := NewServo(newPWMDriver(), testCfg)
	if res := s.SetDeflection(-35); res != hw.Ok {
		t.Fatalf("SetDeflection(-35) = %v", res)
	}
	if s.Angle() != 45 {
		t.Errorf("Angle() = %v, want 45", s.Angle())
	}
	if res := s.SetDeflection(190); res != hw.Ok || s.Angle() != 270 {
		t.Errorf("SetDeflection(190) = %v, angle %v; want ok at 270", res, s.Angle())
	}
}

func TestServo_HardwareFault(t *testing.T) {
	drv := newPWMDriver()
	s, _ := NewServo(drv, testCfg)
	drv.err = errors.New("pwm gone")
	if res := s.SetAngle(45); res != hw.HardwareFault {
		t.Errorf("SetAngle with failing driver = %v, want hardware fault", res)
	}
	if s.Angle() != 80 {
		t.Errorf("Angle() = %v, want unchanged 80", s.Angle())
	}
}
