package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw/flywheel"
	"github.com/cjeanneret/PanTurret/internal/hw/gpio"
	"github.com/cjeanneret/PanTurret/internal/hw/motor"
	"github.com/cjeanneret/PanTurret/internal/hw/quadrature"
	"github.com/cjeanneret/PanTurret/internal/hw/servo"
	"github.com/cjeanneret/PanTurret/internal/hw/sim"
	"github.com/cjeanneret/PanTurret/internal/hw/thermal"
	"github.com/cjeanneret/PanTurret/internal/hw/trigger"
	"github.com/cjeanneret/PanTurret/internal/logic/encoder"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// encoderPoll is the quadrature sampling interval on real hardware.
const encoderPoll = 200 * time.Microsecond

// rig is the hardware the tasks run on. It outlives soft restarts.
type rig struct {
	clk      ticks.Clock
	gpio     gpio.Driver
	drive    motor.Drive
	counter  encoder.Counter
	servo    *servo.Servo
	flywheel *flywheel.MOSFET
	sensor   thermal.Sensor
	button   trigger.Input
	soft     *trigger.Soft
	plant    *sim.Plant // nil on real hardware

	closers []func() error
}

// newRig builds every capability, failing fast. With mock GPIO the pan
// axis and thermal sensor are simulated on clk.
func newRig(ctx context.Context, cfg *config.Config, clk ticks.Clock) (*rig, error) {
	debug.Step(1, "Initializing GPIO driver")
	g, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return nil, fmt.Errorf("init GPIO: %w", err)
	}
	return buildRig(ctx, cfg, clk, g, nil)
}

// buildRig wires the capabilities on g and takes ownership of it. On real
// hardware src replaces the I2C thermal sensor when non-nil. Background
// pollers start only once every pin is set up.
func buildRig(ctx context.Context, cfg *config.Config, clk ticks.Clock, g gpio.Driver, src thermal.Source) (*rig, error) {
	r := &rig{clk: clk, gpio: g}
	r.closers = append(r.closers, g.Close)
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	var err error
	var dec *quadrature.Decoder
	debug.Step(2, "Initializing pan axis")
	if cfg.Defaults.MockGPIO {
		r.plant = sim.NewPlant(clk, cfg.Sim.CountsPerMsFull, cfg.Encoder.Period)
		r.drive, r.counter = r.plant, r.plant
		debug.Value("Simulated plant", fmt.Sprintf("%.0f counts/ms at full duty", cfg.Sim.CountsPerMsFull))
	} else {
		m, err := motor.NewMotor(g, motor.Config{
			EnablePin: cfg.Motor.EnablePin,
			In1Pin:    cfg.Motor.In1Pin,
			In2Pin:    cfg.Motor.In2Pin,
			PWMFreqHz: cfg.Motor.PWMFreqHz,
		})
		if err != nil {
			return nil, fmt.Errorf("init motor: %w", err)
		}
		r.drive = m
		dec, err = quadrature.NewDecoder(g, cfg.Encoder.PinA, cfg.Encoder.PinB, cfg.Encoder.Period)
		if err != nil {
			return nil, fmt.Errorf("init encoder: %w", err)
		}
		r.counter = dec
	}
	debug.PrintStruct("Motor config", cfg.Motor)
	debug.PrintStruct("Encoder config", cfg.Encoder)

	debug.Step(3, "Initializing trigger servo and flywheel")
	r.servo, err = servo.NewServo(g, servo.Config{
		Pin:        cfg.Servo.Pin,
		ZeroAngle:  cfg.Servo.ZeroAngle,
		RangeDeg:   cfg.Servo.RangeDeg,
		MinPulseUs: cfg.Servo.MinPulseUs,
		MaxPulseUs: cfg.Servo.MaxPulseUs,
		PWMFreqHz:  cfg.Servo.PWMFreqHz,
	})
	if err != nil {
		return nil, fmt.Errorf("init servo: %w", err)
	}
	if r.flywheel, err = flywheel.NewMOSFET(g, cfg.Flywheel.Pin); err != nil {
		return nil, fmt.Errorf("init flywheel: %w", err)
	}

	debug.Step(4, "Initializing trigger input")
	pin, err := trigger.NewPin(g, cfg.Trigger.Pin, cfg.Trigger.HighVolts)
	if err != nil {
		return nil, fmt.Errorf("init trigger: %w", err)
	}
	r.soft = trigger.NewSoft(cfg.Trigger.HighVolts)
	r.button = trigger.Any{pin, r.soft}

	debug.Step(5, "Initializing thermal sensor")
	switch {
	case r.plant != nil:
		src = sim.NewScene(cfg, r.plant, clk)
	case src == nil:
		i2c, err := thermal.NewI2CSource(cfg.Thermal.Bus, cfg.Thermal.Address, cfg.Thermal.Width*cfg.Thermal.Height)
		if err != nil {
			return nil, fmt.Errorf("init thermal sensor: %w", err)
		}
		r.closers = append(r.closers, i2c.Close)
		src = i2c
	}
	r.sensor = thermal.NewAssembler(src, cfg.Thermal.Width, cfg.Thermal.Height)
	debug.PrintStruct("Thermal config", cfg.Thermal)

	if dec != nil {
		go func() {
			if err := dec.Run(ctx, encoderPoll); err != nil && !errors.Is(err, context.Canceled) {
				debug.Errorf("encoder decoder stopped: %v", err)
			}
		}()
	}

	ok = true
	return r, nil
}

// rest puts every actuator in its safe state.
func (r *rig) rest(cfg *config.Config) {
	r.drive.Disable()
	r.flywheel.Off()
	r.servo.SetAngle(cfg.Fire.RestAngle)
}

// Close releases the hardware in reverse order of acquisition.
func (r *rig) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
