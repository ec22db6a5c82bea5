package gpio

import "testing"

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Fatalf("NewDriver(true) = %T, want *MockDriver", d)
	}
}

func TestMockDriver_RemembersLevels(t *testing.T) {
	m := NewMockDriver()
	if err := m.SetupPin(4, Output); err != nil {
		t.Fatal(err)
	}
	if err := m.WritePin(4, High); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := m.ReadPin(4); lvl != High {
		t.Errorf("ReadPin(4) = %v, want High", lvl)
	}
	if mode, ok := m.Mode(4); !ok || mode != Output {
		t.Errorf("Mode(4) = %v, %v; want output", mode, ok)
	}

	m.Set(17, High)
	if lvl, _ := m.ReadPin(17); lvl != High {
		t.Error("forced input level not visible through ReadPin")
	}
	if lvl, _ := m.ReadPin(99); lvl != Low {
		t.Error("unknown pin should read Low")
	}
}

func TestMockDriver_PWM(t *testing.T) {
	m := NewMockDriver()
	if err := m.SetPWM(18, 50, 0.075); err != nil {
		t.Fatal(err)
	}
	if m.Duty(18) != 0.075 || m.Freq(18) != 50 {
		t.Errorf("pwm = %vHz %v, want 50Hz 0.075", m.Freq(18), m.Duty(18))
	}
	for _, d := range []float64{-0.1, 1.5} {
		if err := m.SetPWM(18, 50, d); err == nil {
			t.Errorf("SetPWM duty %v: expected error", d)
		}
	}
	if m.Duty(18) != 0.075 {
		t.Error("rejected duty must not change the stored value")
	}
}

func TestPinMode_String(t *testing.T) {
	cases := map[PinMode]string{Input: "input", Output: "output", PWM: "pwm", PinMode(7): "mode(7)"}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(m), got, want)
		}
	}
}
