// Package turret implements the targeting and firing task. It owns every
// actuator: the pan drive (through the motion controller), the trigger
// servo and the flywheel. It reads the supervisor's flags and never writes
// them.
package turret

import (
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/hw/flywheel"
	"github.com/cjeanneret/PanTurret/internal/hw/motor"
	"github.com/cjeanneret/PanTurret/internal/hw/servo"
	"github.com/cjeanneret/PanTurret/internal/hw/thermal"
	"github.com/cjeanneret/PanTurret/internal/logic/encoder"
	"github.com/cjeanneret/PanTurret/internal/logic/motion"
	"github.com/cjeanneret/PanTurret/internal/logic/supervisor"
	"github.com/cjeanneret/PanTurret/internal/logic/targeting"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// State is the turret state.
type State int

const (
	Init State = iota
	WaitStart
	Acquire
	Slew
	Fire
	Hold
	Abort
	ReturnHome
	Parked
	Fault
)

var stateNames = [...]string{"Init", "WaitStart", "Acquire", "Slew", "Fire", "Hold", "Abort", "ReturnHome", "Parked", "Fault"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Hardware groups the capabilities the turret drives.
type Hardware struct {
	Drive    motor.Drive
	Counter  encoder.Counter
	Servo    servo.Positioner
	Flywheel flywheel.Spinner
	Sensor   thermal.Sensor
}

// Params are the engagement parameters.
type Params struct {
	CPR     int
	Heading int64
	Home    int64
	// LiveAnchor solves relative to the axis position at acquisition
	// instead of the fixed heading.
	LiveAnchor bool
	PreAim     motion.Profile
	Slew       motion.Profile
	Return     motion.Profile
	Refire     int // shots after the first
	FireAngle  float64
	RestAngle  float64
	HoldMs     int32
}

// ParamsFromConfig reads the engagement parameters from configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	pre, slew, ret := motion.Profiles(cfg)
	return Params{
		CPR:        cfg.Encoder.CPR,
		Heading:    cfg.Aim.HeadingCounts,
		Home:       cfg.Aim.HomeCounts,
		LiveAnchor: cfg.Aim.LiveAnchor,
		PreAim:     pre,
		Slew:       slew,
		Return:     ret,
		Refire:     cfg.Fire.Refire,
		FireAngle:  cfg.Fire.FireAngle,
		RestAngle:  cfg.Fire.RestAngle,
		HoldMs:     ticks.Ms(cfg.FireHold()),
	}
}

// engagement is the context built in Init and owned by the turret's steps.
type engagement struct {
	axis       *motion.Controller
	desired    int64
	remaining  int // shots left after the current one
	shots      int
	preAimDone bool
	pulled     bool
	hold       ticks.Deadline
	solution   targeting.Solution
	solved     bool
}

// Turret is the targeting/firing state machine.
type Turret struct {
	params Params
	hw     Hardware
	solver *targeting.Solver
	flags  supervisor.Flags

	state State
	eng   *engagement
	fault string
}

// New creates the turret task. Hardware contexts are built on the first step.
func New(p Params, h Hardware, solver *targeting.Solver, flags supervisor.Flags) *Turret {
	return &Turret{params: p, hw: h, solver: solver, flags: flags}
}

// State returns the current state name.
func (t *Turret) State() string { return t.state.String() }

// Current returns the current state.
func (t *Turret) Current() State { return t.state }

// Step advances the machine by one step.
func (t *Turret) Step(now ticks.Ticks) {
	switch t.state {
	case Init:
		t.init()
	case WaitStart:
		t.waitStart(now)
	case Acquire:
		t.acquire()
	case Slew:
		t.slew(now)
	case Fire:
		t.fire(now)
	case Hold:
		if t.flags.Stop.Get() {
			t.abort()
		}
	case Abort:
		if t.flags.Return.Get() {
			t.eng.desired = t.params.Home
			t.check(t.eng.axis.MoveTo(t.params.Home, t.params.Return), "return home")
			t.goTo(ReturnHome)
		}
	case ReturnHome:
		t.returnHome(now)
	case Parked, Fault:
		// absorbing until an external reset
	}
}

func (t *Turret) goTo(s State) {
	if t.state != Fault {
		t.state = s
	}
}

// check moves to Fault on a hardware fault. Out-of-range commands were
// already logged by the actuator and are not fatal.
func (t *Turret) check(res hw.Result, what string) bool {
	if res != hw.HardwareFault {
		return true
	}
	t.fault = what
	debug.Errorf("turret: hardware fault during %s, stopping", what)
	if t.eng != nil {
		t.eng.axis.Stop()
	}
	t.hw.Flywheel.Off()
	t.state = Fault
	return false
}

func (t *Turret) init() {
	t.eng = &engagement{
		axis:      motion.NewController(t.hw.Drive, encoder.NewTracker(t.hw.Counter, t.params.CPR)),
		remaining: t.params.Refire,
	}
	if !t.check(t.hw.Flywheel.Off(), "flywheel init") {
		return
	}
	if !t.check(t.hw.Servo.SetAngle(t.params.RestAngle), "servo init") {
		return
	}
	debug.Verbose("turret: ready, %d refire(s), heading %d, home %d", t.params.Refire, t.params.Heading, t.params.Home)
	t.goTo(WaitStart)
}

func (t *Turret) waitStart(now ticks.Ticks) {
	e := t.eng
	if t.flags.Stop.Get() {
		t.abort()
		return
	}
	if t.flags.Start.Get() {
		if e.axis.Moving() {
			t.check(e.axis.Hold(), "pre-aim hold")
		}
		t.goTo(Acquire)
		return
	}
	if !t.flags.Button.Get() || e.preAimDone {
		return
	}
	if !e.axis.Moving() {
		e.desired = t.params.Heading
		if !t.check(e.axis.MoveTo(t.params.Heading, t.params.PreAim), "pre-aim") {
			return
		}
	}
	settled, res := e.axis.Step(now)
	if !t.check(res, "pre-aim") {
		return
	}
	if settled {
		t.check(e.axis.Hold(), "pre-aim hold")
		e.preAimDone = true
		debug.Live("turret: pre-aim done at %d", e.axis.Position())
	}
}

func (t *Turret) acquire() {
	e := t.eng
	if t.flags.Stop.Get() {
		t.abort()
		return
	}
	if !t.check(t.hw.Flywheel.On(), "flywheel on") {
		return
	}
	frame, ok := t.hw.Sensor.PollFrame()
	if !ok {
		return
	}
	thermal.Dump(frame)
	sol, err := t.solve(frame)
	if err != nil {
		debug.Error(fmt.Errorf("turret: %w", err))
		return
	}
	e.solution, e.solved = sol, true
	e.desired = sol.Position
	debug.Live("turret: target %s", sol)
	if t.check(e.axis.MoveTo(sol.Position, t.params.Slew), "slew") {
		t.goTo(Slew)
	}
}

func (t *Turret) solve(frame thermal.Frame) (targeting.Solution, error) {
	if t.params.LiveAnchor {
		return t.solver.SolveFrom(frame, t.eng.axis.ReadPosition())
	}
	return t.solver.Solve(frame)
}

func (t *Turret) slew(now ticks.Ticks) {
	e := t.eng
	if t.flags.Stop.Get() {
		t.abort()
		return
	}
	settled, res := e.axis.Step(now)
	if !t.check(res, "slew") {
		return
	}
	if settled && t.check(e.axis.Hold(), "slew hold") {
		t.goTo(Fire)
	}
}

func (t *Turret) fire(now ticks.Ticks) {
	e := t.eng
	if t.flags.Stop.Get() {
		t.abort()
		return
	}
	if !e.pulled {
		if !t.check(t.hw.Servo.SetAngle(t.params.FireAngle), "fire") {
			return
		}
		e.pulled = true
		e.shots++
		e.hold.Start(now, t.params.HoldMs)
		debug.Shot(e.axis.Position(), e.remaining)
		return
	}
	if !e.hold.Expired(now) {
		return
	}
	e.pulled = false
	e.hold.Stop()
	if !t.check(t.hw.Servo.SetAngle(t.params.RestAngle), "trigger release") {
		return
	}
	if !t.check(t.hw.Flywheel.Off(), "flywheel off") {
		return
	}
	if e.remaining > 0 {
		e.remaining--
		t.goTo(Acquire)
		return
	}
	debug.Live("turret: magazine plan complete (%d shots), holding", e.shots)
	t.goTo(Hold)
}

// abort stops every actuator and waits for Return.
func (t *Turret) abort() {
	e := t.eng
	e.pulled = false
	e.hold.Stop()
	if !t.check(e.axis.Stop(), "abort drive") {
		return
	}
	if !t.check(t.hw.Flywheel.Off(), "abort flywheel") {
		return
	}
	if !t.check(t.hw.Servo.SetAngle(t.params.RestAngle), "abort servo") {
		return
	}
	t.goTo(Abort)
}

func (t *Turret) returnHome(now ticks.Ticks) {
	e := t.eng
	settled, res := e.axis.Step(now)
	if !t.check(res, "return home") {
		return
	}
	if settled && t.check(e.axis.Stop(), "park") {
		debug.Info("turret: parked at %d after %d shot(s)", e.axis.Position(), e.shots)
		t.goTo(Parked)
	}
}

// Snapshot is a copy of the turret's observable state.
type Snapshot struct {
	State      string              `json:"state"`
	Position   int64               `json:"position"`
	Desired    int64               `json:"desired"`
	Duty       float64             `json:"duty"`
	Shots      int                 `json:"shots"`
	Remaining  int                 `json:"remaining"`
	PreAimDone bool                `json:"pre_aim_done"`
	Fault      string              `json:"fault,omitempty"`
	Solution   *targeting.Solution `json:"solution,omitempty"`
}

// Snapshot returns the current observable state. It must be called from the
// scheduler goroutine.
func (t *Turret) Snapshot() Snapshot {
	s := Snapshot{State: t.state.String(), Fault: t.fault}
	if e := t.eng; e != nil {
		s.Position = e.axis.Position()
		s.Desired = e.desired
		s.Duty = e.axis.Duty()
		s.Shots = e.shots
		s.Remaining = e.remaining
		s.PreAimDone = e.preAimDone
		if e.solved {
			sol := e.solution
			s.Solution = &sol
		}
	}
	return s
}
