package motion

import (
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/hw/motor"
	"github.com/cjeanneret/PanTurret/internal/logic/encoder"
	"github.com/cjeanneret/PanTurret/internal/logic/geometry"
	"github.com/cjeanneret/PanTurret/internal/logic/pid"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// Profile is one move's gains and settle criteria.
type Profile struct {
	Name      string
	Gains     pid.Gains
	Tolerance int64 // counts
	DwellMs   int32 // time continuously within tolerance before settling
}

// ProfileFromConfig converts a configured move profile.
func ProfileFromConfig(name string, p config.MoveProfile) Profile {
	return Profile{
		Name:      name,
		Gains:     pid.Gains{Kp: p.Kp, Ki: p.Ki, Kd: p.Kd},
		Tolerance: p.ToleranceCounts,
		DwellMs:   int32(p.DwellMs),
	}
}

// Profiles returns the pre-aim, slew and return profiles.
func Profiles(cfg *config.Config) (preAim, slew, ret Profile) {
	return ProfileFromConfig("pre-aim", cfg.Aim.PreAim),
		ProfileFromConfig("slew", cfg.Aim.Slew),
		ProfileFromConfig("return", cfg.Aim.Return)
}

// Controller closes the loop on the pan axis: it reads the encoder tracker,
// runs the PID controller and drives the motor. A move has settled once the
// position stayed within tolerance for the profile's dwell time; leaving the
// tolerance window restarts the dwell timer.
// It's the layer between the turret state machine and the hardware.
type Controller struct {
	drive   motor.Drive
	tracker *encoder.Tracker
	pid     *pid.Controller

	profile  Profile
	target   int64
	position int64
	duty     float64
	last     ticks.Ticks
	stepped  bool
	dwell    ticks.Deadline
	settled  bool
	moving   bool
}

func NewController(drive motor.Drive, tracker *encoder.Tracker) *Controller {
	return &Controller{
		drive:   drive,
		tracker: tracker,
		pid:     pid.New(0, pid.Gains{}),
	}
}

// MoveTo starts a move toward target with fresh PID history and enables the
// drive.
func (c *Controller) MoveTo(target int64, p Profile) hw.Result {
	c.profile = p
	c.target = target
	c.pid.Retarget(float64(target), p.Gains)
	c.stepped = false
	c.dwell.Stop()
	c.settled = false
	c.moving = true
	debug.Verbose("Move %s -> %d (Kp=%.3f tol=%d dwell=%dms)", p.Name, target, p.Gains.Kp, p.Tolerance, p.DwellMs)
	return c.drive.Enable()
}

// Retarget changes the target of the current move, keeping PID history and
// the dwell timer.
func (c *Controller) Retarget(target int64) {
	c.target = target
	c.pid.SetSetpoint(float64(target))
}

// Step runs one control iteration and reports whether the move settled.
func (c *Controller) Step(now ticks.Ticks) (bool, hw.Result) {
	c.position = c.tracker.ReadPosition()
	dt := 0.0
	if c.stepped {
		dt = float64(ticks.Diff(now, c.last))
	}
	c.last = now
	c.stepped = true

	out := c.pid.Run(float64(c.position), dt)
	c.duty = motor.Clamp(out)
	res := c.drive.SetDutyCycle(c.duty)
	if res != hw.Ok {
		return false, res
	}
	if debug.IsEnabled(debug.LevelVerbose) {
		t := c.pid.Last()
		debug.Verbose("%s: pos=%d err=%.0f P=%.1f I=%.1f D=%.1f duty=%.1f",
			c.profile.Name, c.position, t.Error, t.P, t.I, t.D, c.duty)
	}

	if !geometry.WithinTolerance(c.position, c.target, c.profile.Tolerance) {
		c.dwell.Stop()
		c.settled = false
		return false, hw.Ok
	}
	if !c.dwell.Armed() {
		c.dwell.Start(now, c.profile.DwellMs)
	}
	if c.dwell.Expired(now) && !c.settled {
		c.settled = true
		debug.Live("Move %s settled at %d (target %d)", c.profile.Name, c.position, c.target)
	}
	return c.settled, hw.Ok
}

// Stop zeroes the duty and disables the drive.
func (c *Controller) Stop() hw.Result {
	c.moving = false
	c.duty = 0
	c.dwell.Stop()
	return c.drive.Disable()
}

// Hold zeroes the duty but keeps the drive enabled.
func (c *Controller) Hold() hw.Result {
	c.duty = 0
	return c.drive.SetDutyCycle(0)
}

// Position returns the position measured at the last step.
func (c *Controller) Position() int64 { return c.position }

// ReadPosition samples the encoder outside of a control step.
func (c *Controller) ReadPosition() int64 {
	c.position = c.tracker.ReadPosition()
	return c.position
}

// Target returns the current move target.
func (c *Controller) Target() int64 { return c.target }

// Duty returns the last commanded duty.
func (c *Controller) Duty() float64 { return c.duty }

// Moving reports whether a move is active (not stopped).
func (c *Controller) Moving() bool { return c.moving }

// Settled reports whether the current move has settled.
func (c *Controller) Settled() bool { return c.settled }

// Profile returns the active move profile.
func (c *Controller) Profile() Profile { return c.profile }

// Terms returns the PID terms of the last step.
func (c *Controller) Terms() pid.Terms { return c.pid.Last() }

// Zero resets the encoder position to 0.
func (c *Controller) Zero() {
	c.tracker.Zero()
	c.position = 0
}

func (p Profile) String() string {
	return fmt.Sprintf("%s(Kp=%g Ki=%g Kd=%g tol=%d dwell=%dms)", p.Name, p.Gains.Kp, p.Gains.Ki, p.Gains.Kd, p.Tolerance, p.DwellMs)
}
