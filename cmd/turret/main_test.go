package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
	"github.com/cjeanneret/PanTurret/internal/logic/turret"
	"github.com/cjeanneret/PanTurret/internal/ticks"
	"github.com/cjeanneret/PanTurret/internal/web"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides(t *testing.T) {
	cases := []struct {
		name   string
		mode   string
		refire int
		ok     bool
	}{
		{"defaults", modeRun, -1, true},
		{"stepresponse", modeStepResponse, -1, true},
		{"refire_zero", modeRun, 0, true},
		{"refire_three", modeRun, 3, true},
		{"unknown_mode", "fire", -1, false},
		{"empty_mode", "", -1, false},
		{"negative_refire", modeRun, -2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateCLIOverrides(tc.mode, tc.refire)
			if (err == nil) != tc.ok {
				t.Errorf("validateCLIOverrides(%q, %d) = %v, want ok=%v", tc.mode, tc.refire, err, tc.ok)
			}
		})
	}
}

// ---------- applyOverrides ----------

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Fire.Refire = 2
	cfg.Harness.Port = "/dev/ttyACM0"

	applyOverrides(cfg, -1, "")
	if cfg.Fire.Refire != 2 || cfg.Harness.Port != "/dev/ttyACM0" {
		t.Errorf("unset flags changed config: refire=%d port=%q", cfg.Fire.Refire, cfg.Harness.Port)
	}

	applyOverrides(cfg, 0, "/dev/ttyUSB1")
	if cfg.Fire.Refire != 0 || cfg.Harness.Port != "/dev/ttyUSB1" {
		t.Errorf("overrides not applied: refire=%d port=%q", cfg.Fire.Refire, cfg.Harness.Port)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	for _, input := range []string{"0", "65536", "-1", "abc", "8080.5"} {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- watchLink ----------

func TestWatchLink_RequestsRestarts(t *testing.T) {
	restarts := 0
	watchLink(strings.NewReader("noise\x02\x03\x04more\x02\x03\x04"), func() { restarts++ })
	if restarts != 2 {
		t.Errorf("restarts = %d, want 2", restarts)
	}
}

// ---------- rig + tasks ----------

func loadDefault(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("../../configs/default.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Defaults.MockGPIO = true
	cfg.Defaults.DebugLevel = 0
	return cfg
}

func TestSimulatedEngagement(t *testing.T) {
	cfg := loadDefault(t)
	clk := ticks.NewManual(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := newRig(ctx, cfg, clk)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.plant == nil {
		t.Fatal("mock GPIO should build the simulated plant")
	}

	telemetry := web.NewTelemetry()
	tk, err := newTasks(cfg, r, telemetry)
	if err != nil {
		t.Fatal(err)
	}
	r.soft.Press()
	for ms := 0; ms <= 21000; ms++ {
		tk.sched.RunOnce(clk.Now())
		clk.Advance(1)
	}

	if got := tk.tur.Current(); got != turret.Parked {
		t.Fatalf("turret state = %v, want Parked", got)
	}
	snap, seq := telemetry.Latest()
	if seq == 0 {
		t.Fatal("no telemetry published")
	}
	if snap.RunID == "" || snap.Engagements != 1 || snap.Timing != "WaitTrigger" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Turret.Shots != cfg.Fire.Refire+1 || snap.Turret.State != "Parked" {
		t.Errorf("turret snapshot = %+v", snap.Turret)
	}
	if len(snap.Tasks) != 2 || snap.Tasks[0].Name != "timing" {
		t.Errorf("task stats = %+v", snap.Tasks)
	}
	// Telemetry is throttled.
	if max := uint64(21000/publishEveryMs + 1); seq > max {
		t.Errorf("%d snapshots published, want at most %d", seq, max)
	}
}

func TestRig_RestIsSafe(t *testing.T) {
	cfg := loadDefault(t)
	clk := ticks.NewManual(0)
	r, err := newRig(context.Background(), cfg, clk)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.drive.Enable()
	r.drive.SetDutyCycle(50)
	r.flywheel.On()
	r.servo.SetAngle(cfg.Fire.FireAngle)

	r.rest(cfg)
	if r.plant.Enabled() || r.plant.Duty() != 0 {
		t.Error("drive not disabled")
	}
	if r.flywheel.Running() {
		t.Error("flywheel still running")
	}
	if r.servo.Angle() != cfg.Fire.RestAngle {
		t.Errorf("servo at %.0f, want %.0f", r.servo.Angle(), cfg.Fire.RestAngle)
	}
}

// slowDriver is a mock driver whose pin setup takes a while. It records
// setups that happen after the encoder pins were first polled.
type slowDriver struct {
	*gpio.MockDriver
	encoder map[int]bool

	mu         sync.Mutex
	reads      int
	lateSetups []int
}

func (d *slowDriver) SetupPin(pin int, mode gpio.PinMode) error {
	time.Sleep(2 * time.Millisecond)
	d.mu.Lock()
	// NewDecoder samples both channels once before returning.
	if d.reads > 2 {
		d.lateSetups = append(d.lateSetups, pin)
	}
	d.mu.Unlock()
	return d.MockDriver.SetupPin(pin, mode)
}

func (d *slowDriver) ReadPin(pin int) (gpio.Level, error) {
	if d.encoder[pin] {
		d.mu.Lock()
		d.reads++
		d.mu.Unlock()
	}
	return d.MockDriver.ReadPin(pin)
}

func (d *slowDriver) encoderReads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

type idleSource struct{}

func (idleSource) HasData() bool { return false }
func (idleSource) ReadSubpage() (int, []float64, error) {
	return 0, nil, errors.New("no sensor")
}

func TestBuildRig_EncoderPollsAfterPinSetup(t *testing.T) {
	cfg := loadDefault(t)
	cfg.Defaults.MockGPIO = false
	d := &slowDriver{
		MockDriver: gpio.NewMockDriver(),
		encoder:    map[int]bool{cfg.Encoder.PinA: true, cfg.Encoder.PinB: true},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := buildRig(ctx, cfg, ticks.NewManual(0), d, idleSource{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.plant != nil {
		t.Fatal("real-hardware rig must not build the simulated plant")
	}

	deadline := time.Now().Add(time.Second)
	for d.encoderReads() <= 2 {
		if time.Now().After(deadline) {
			t.Fatal("encoder poller never started")
		}
		time.Sleep(time.Millisecond)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lateSetups) != 0 {
		t.Errorf("pins %v set up while the encoder was already polling", d.lateSetups)
	}
}
