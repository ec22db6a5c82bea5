package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskConfig holds the scheduling parameters of one cooperative task.
type TaskConfig struct {
	Priority int `yaml:"priority"`
	PeriodMs int `yaml:"period_ms"`
}

// SchedulerConfig configures the cooperative scheduler.
type SchedulerConfig struct {
	Ordering   string     `yaml:"ordering"`    // "higher_first" (default) or "lower_first"
	TraceDepth int        `yaml:"trace_depth"` // state transitions kept for inspection, 0 = off
	TimingTask TaskConfig `yaml:"timing_task"`
	TurretTask TaskConfig `yaml:"turret_task"`
}

// TriggerConfig describes the start button input.
type TriggerConfig struct {
	Pin            int     `yaml:"pin"`             // GPIO pin (BCM)
	ThresholdVolts float64 `yaml:"threshold_volts"` // pressed when reading >= threshold
	HighVolts      float64 `yaml:"high_volts"`      // voltage reported for a HIGH digital level
}

// TimingConfig holds the engagement window lengths.
type TimingConfig struct {
	WaitWindowMs   int `yaml:"wait_window_ms"`   // trigger -> Start
	ActiveWindowMs int `yaml:"active_window_ms"` // Start -> Stop
	CooldownMs     int `yaml:"cooldown_ms"`      // Stop -> Return
	ReturnWindowMs int `yaml:"return_window_ms"` // Return -> idle
}

// MotorConfig describes the pan drive (H-bridge, L6206 style).
type MotorConfig struct {
	EnablePin int `yaml:"enable_pin"`
	In1Pin    int `yaml:"in1_pin"` // PWM, positive direction
	In2Pin    int `yaml:"in2_pin"` // PWM, negative direction
	PWMFreqHz int `yaml:"pwm_freq_hz"`
}

// EncoderConfig describes the pan quadrature encoder.
type EncoderConfig struct {
	PinA   int    `yaml:"pin_a"`
	PinB   int    `yaml:"pin_b"`
	Period uint32 `yaml:"period"` // counter maximum value (AR)
	CPR    int    `yaml:"cpr"`    // lines per revolution, before x4 decoding
}

// ServoConfig describes the trigger servo.
type ServoConfig struct {
	Pin        int     `yaml:"pin"`
	ZeroAngle  float64 `yaml:"zero_angle"` // reference for relative deflections
	RangeDeg   float64 `yaml:"range_deg"`
	MinPulseUs int     `yaml:"min_pulse_us"`
	MaxPulseUs int     `yaml:"max_pulse_us"`
	PWMFreqHz  int     `yaml:"pwm_freq_hz"`
}

// FlywheelConfig describes the flywheel MOSFET output.
type FlywheelConfig struct {
	Pin int `yaml:"pin"`
}

// ThermalConfig describes the thermal sensor and target weighting.
type ThermalConfig struct {
	Bus            string  `yaml:"bus"`     // i2c-dev bus of the sensor
	Address        int     `yaml:"address"` // i2c address (0x33)
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	IgnoreLow      float64 `yaml:"ignore_low"`  // percent, 0-100
	IgnoreHigh     float64 `yaml:"ignore_high"` // percent, 0-100
	Origin         string  `yaml:"origin"`      // "center" (default) or "top_left"
	MirrorX        bool    `yaml:"mirror_x"`    // sensor mounted mirrored
	FOVDeg         float64 `yaml:"fov_deg"`     // horizontal field of view
	CentroidWeight float64 `yaml:"centroid_weight"`
	HotspotWeight  float64 `yaml:"hotspot_weight"`
}

// MoveProfile is one set of PID gains with its settle criteria.
type MoveProfile struct {
	Kp              float64 `yaml:"kp"`
	Ki              float64 `yaml:"ki"`
	Kd              float64 `yaml:"kd"`
	ToleranceCounts int64   `yaml:"tolerance_counts"`
	DwellMs         int     `yaml:"dwell_ms"`
}

// AimConfig holds the pan axis geometry and move profiles.
type AimConfig struct {
	HeadingCounts int64       `yaml:"heading_counts"` // pre-aim heading, also the aim anchor
	HomeCounts    int64       `yaml:"home_counts"`    // return position
	CountsPer180  float64     `yaml:"counts_per_180"`
	LiveAnchor    bool        `yaml:"live_anchor"` // anchor solutions at the axis position instead of the heading
	PreAim        MoveProfile `yaml:"pre_aim"`
	Slew          MoveProfile `yaml:"slew"`
	Return        MoveProfile `yaml:"return"`
}

// FireConfig holds the firing sequence parameters.
type FireConfig struct {
	Refire    int     `yaml:"refire"`     // additional shots after the first
	FireAngle float64 `yaml:"fire_angle"` // servo angle pulling the trigger
	RestAngle float64 `yaml:"rest_angle"` // servo angle releasing it
	HoldMs    int     `yaml:"hold_ms"`
}

// HarnessConfig configures the serial host link and step-response runs.
type HarnessConfig struct {
	Port           string `yaml:"port"`
	Baud           int    `yaml:"baud"`
	Runs           int    `yaml:"runs"`             // step responses per session
	StepDurationMs int    `yaml:"step_duration_ms"` // length of one recorded response
	SampleMs       int    `yaml:"sample_ms"`        // control and sampling period
}

// SimConfig parameterizes the simulated plant used with mock GPIO.
type SimConfig struct {
	CountsPerMsFull float64 `yaml:"counts_per_ms_full"` // pan speed at 100% duty
	TargetAngleDeg  float64 `yaml:"target_angle_deg"`   // bearing of the simulated heat source
	FrameIntervalMs int     `yaml:"frame_interval_ms"`  // time per sensor subpage
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO and the simulated plant
}

// Config aggregates all application configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Timing    TimingConfig    `yaml:"timing"`
	Motor     MotorConfig     `yaml:"motor"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Servo     ServoConfig     `yaml:"servo"`
	Flywheel  FlywheelConfig  `yaml:"flywheel"`
	Thermal   ThermalConfig   `yaml:"thermal"`
	Aim       AimConfig       `yaml:"aim"`
	Fire      FireConfig      `yaml:"fire"`
	Harness   HarnessConfig   `yaml:"harness"`
	Sim       SimConfig       `yaml:"sim"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath rejects config paths that are not a .yaml file directly
// inside a directory named "configs".
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be inside a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, fills defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration (mock hardware).
func Default() *Config {
	cfg := Config{Defaults: DefaultsConfig{MockGPIO: true}}
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	// Scheduler: timing task outranks the turret task (higher_first).
	if c.Scheduler.Ordering == "" {
		c.Scheduler.Ordering = "higher_first"
	}
	if c.Scheduler.TimingTask == (TaskConfig{}) {
		c.Scheduler.TimingTask = TaskConfig{Priority: 2, PeriodMs: 20}
	}
	if c.Scheduler.TurretTask == (TaskConfig{}) {
		c.Scheduler.TurretTask = TaskConfig{Priority: 1, PeriodMs: 7}
	}

	if c.Trigger.ThresholdVolts <= 0 {
		c.Trigger.ThresholdVolts = 2.0
	}
	if c.Trigger.HighVolts <= 0 {
		c.Trigger.HighVolts = 3.3
	}

	if c.Timing.WaitWindowMs <= 0 {
		c.Timing.WaitWindowMs = 5000
	}
	if c.Timing.ActiveWindowMs <= 0 {
		c.Timing.ActiveWindowMs = 10000
	}
	if c.Timing.CooldownMs <= 0 {
		c.Timing.CooldownMs = 1000
	}
	if c.Timing.ReturnWindowMs <= 0 {
		c.Timing.ReturnWindowMs = 3000
	}

	if c.Motor.PWMFreqHz <= 0 {
		c.Motor.PWMFreqHz = 1000
	}

	if c.Encoder.Period == 0 {
		c.Encoder.Period = 65535
	}
	if c.Encoder.CPR <= 0 {
		c.Encoder.CPR = 256
	}

	if c.Servo.ZeroAngle <= 0 {
		c.Servo.ZeroAngle = 80
	}
	if c.Servo.RangeDeg <= 0 {
		c.Servo.RangeDeg = 270
	}
	if c.Servo.MinPulseUs <= 0 {
		c.Servo.MinPulseUs = 500
	}
	if c.Servo.MaxPulseUs <= 0 {
		c.Servo.MaxPulseUs = 2500
	}
	if c.Servo.PWMFreqHz <= 0 {
		c.Servo.PWMFreqHz = 50
	}

	if c.Thermal.Bus == "" {
		c.Thermal.Bus = "/dev/i2c-1"
	}
	if c.Thermal.Address <= 0 {
		c.Thermal.Address = 0x33
	}
	if c.Thermal.Width <= 0 {
		c.Thermal.Width = 32
	}
	if c.Thermal.Height <= 0 {
		c.Thermal.Height = 24
	}
	if c.Thermal.IgnoreLow == 0 && c.Thermal.IgnoreHigh == 0 {
		c.Thermal.IgnoreLow, c.Thermal.IgnoreHigh = 91, 100
	}
	if c.Thermal.Origin == "" {
		c.Thermal.Origin = "center"
	}
	if c.Thermal.FOVDeg <= 0 {
		c.Thermal.FOVDeg = 55
	}
	if c.Thermal.CentroidWeight == 0 && c.Thermal.HotspotWeight == 0 {
		c.Thermal.CentroidWeight, c.Thermal.HotspotWeight = 0.7, 0.3
	}

	if c.Aim.HeadingCounts == 0 {
		c.Aim.HeadingCounts = 80000
	}
	if c.Aim.CountsPer180 <= 0 {
		c.Aim.CountsPer180 = 80000
	}
	if c.Aim.PreAim == (MoveProfile{}) {
		c.Aim.PreAim = MoveProfile{Kp: 0.25, ToleranceCounts: 1000, DwellMs: 1000}
	}
	if c.Aim.Slew == (MoveProfile{}) {
		c.Aim.Slew = MoveProfile{Kp: 0.2, ToleranceCounts: 2000, DwellMs: 100}
	}
	if c.Aim.Return == (MoveProfile{}) {
		c.Aim.Return = MoveProfile{Kp: 0.25, ToleranceCounts: 2500, DwellMs: 1000}
	}

	if c.Fire.FireAngle <= 0 {
		c.Fire.FireAngle = 45
	}
	if c.Fire.RestAngle <= 0 {
		c.Fire.RestAngle = 80
	}
	if c.Fire.HoldMs <= 0 {
		c.Fire.HoldMs = 200
	}

	if c.Harness.Baud <= 0 {
		c.Harness.Baud = 115200
	}
	if c.Harness.Runs <= 0 {
		c.Harness.Runs = 2
	}
	if c.Harness.StepDurationMs <= 0 {
		c.Harness.StepDurationMs = 2000
	}
	if c.Harness.SampleMs <= 0 {
		c.Harness.SampleMs = 10
	}

	if c.Sim.CountsPerMsFull <= 0 {
		c.Sim.CountsPerMsFull = 100
	}
	if c.Sim.FrameIntervalMs <= 0 {
		c.Sim.FrameIntervalMs = 125
	}
}

// Validate checks ranges that have no sensible default.
func (c *Config) Validate() error {
	if c.Scheduler.Ordering != "higher_first" && c.Scheduler.Ordering != "lower_first" {
		return fmt.Errorf("scheduler.ordering must be higher_first or lower_first, got %q", c.Scheduler.Ordering)
	}
	if c.Scheduler.TimingTask.PeriodMs <= 0 || c.Scheduler.TurretTask.PeriodMs <= 0 {
		return fmt.Errorf("scheduler task periods must be > 0")
	}
	if c.Trigger.ThresholdVolts > c.Trigger.HighVolts {
		return fmt.Errorf("trigger.threshold_volts (%.2f) exceeds high_volts (%.2f)", c.Trigger.ThresholdVolts, c.Trigger.HighVolts)
	}
	if c.Encoder.Period < 3 {
		return fmt.Errorf("encoder.period must be >= 3, got %d", c.Encoder.Period)
	}
	if c.Servo.ZeroAngle < 0 || c.Servo.ZeroAngle > c.Servo.RangeDeg {
		return fmt.Errorf("servo.zero_angle must be between 0 and %.0f, got %.2f", c.Servo.RangeDeg, c.Servo.ZeroAngle)
	}
	if c.Servo.MinPulseUs >= c.Servo.MaxPulseUs {
		return fmt.Errorf("servo.min_pulse_us must be < max_pulse_us")
	}
	for name, a := range map[string]float64{"fire_angle": c.Fire.FireAngle, "rest_angle": c.Fire.RestAngle} {
		if a < 0 || a > c.Servo.RangeDeg {
			return fmt.Errorf("fire.%s must be between 0 and %.0f, got %.2f", name, c.Servo.RangeDeg, a)
		}
	}
	if c.Fire.Refire < 0 {
		return fmt.Errorf("fire.refire must be >= 0, got %d", c.Fire.Refire)
	}
	if c.Thermal.IgnoreLow < 0 || c.Thermal.IgnoreLow > 100 || c.Thermal.IgnoreHigh < 0 || c.Thermal.IgnoreHigh > 100 {
		return fmt.Errorf("thermal ignore band must be within 0-100, got [%.1f, %.1f]", c.Thermal.IgnoreLow, c.Thermal.IgnoreHigh)
	}
	if c.Thermal.Origin != "center" && c.Thermal.Origin != "top_left" {
		return fmt.Errorf("thermal.origin must be center or top_left, got %q", c.Thermal.Origin)
	}
	if c.Thermal.CentroidWeight < 0 || c.Thermal.HotspotWeight < 0 {
		return fmt.Errorf("thermal weights must be >= 0")
	}
	if sum := c.Thermal.CentroidWeight + c.Thermal.HotspotWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("thermal.centroid_weight + hotspot_weight must equal 1, got %.3f", sum)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// WaitWindow returns the delay between the trigger press and Start.
func (c *Config) WaitWindow() time.Duration {
	return time.Duration(c.Timing.WaitWindowMs) * time.Millisecond
}

// ActiveWindow returns the firing window length.
func (c *Config) ActiveWindow() time.Duration {
	return time.Duration(c.Timing.ActiveWindowMs) * time.Millisecond
}

// Cooldown returns the pause between Stop and Return.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Timing.CooldownMs) * time.Millisecond
}

// ReturnWindow returns the time allowed for returning home.
func (c *Config) ReturnWindow() time.Duration {
	return time.Duration(c.Timing.ReturnWindowMs) * time.Millisecond
}

// FireHold returns how long the servo holds the trigger.
func (c *Config) FireHold() time.Duration {
	return time.Duration(c.Fire.HoldMs) * time.Millisecond
}

// CenteredOrigin reports whether target offsets are measured from the frame center.
func (c *Config) CenteredOrigin() bool {
	return c.Thermal.Origin == "center"
}

// Dwell returns the settle time of a move profile.
func (p MoveProfile) Dwell() time.Duration {
	return time.Duration(p.DwellMs) * time.Millisecond
}
