// Package supervisor implements the timing task: it waits for the trigger
// button, then walks the engagement windows and publishes their boundaries
// through the Start, Stop, Return and Button flags.
package supervisor

import (
	"github.com/google/uuid"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw/trigger"
	"github.com/cjeanneret/PanTurret/internal/share"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// State is the timing supervisor state.
type State int

const (
	Init State = iota
	WaitTrigger
	WaitWindow
	ActiveWindow
	Cooldown
	ReturnWindow
)

var stateNames = [...]string{"Init", "WaitTrigger", "WaitWindow", "ActiveWindow", "Cooldown", "ReturnWindow"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Flags are the engagement flags. The supervisor is their only writer;
// every other task only reads them.
type Flags struct {
	Start  *share.Flag[bool] // firing window open
	Stop   *share.Flag[bool] // firing window closed, cease fire
	Return *share.Flag[bool] // go home
	Button *share.Flag[bool] // trigger pressed, engagement under way
}

// NewFlags creates the four flags, all cleared.
func NewFlags() Flags {
	return Flags{
		Start:  share.NewFlag("Start", false),
		Stop:   share.NewFlag("Stop", false),
		Return: share.NewFlag("Return", false),
		Button: share.NewFlag("Button", false),
	}
}

// Windows holds the window lengths in milliseconds.
type Windows struct {
	Wait     int32
	Active   int32
	Cooldown int32
	Return   int32
}

// WindowsFromConfig reads the window lengths from configuration.
func WindowsFromConfig(cfg *config.Config) Windows {
	return Windows{
		Wait:     ticks.Ms(cfg.WaitWindow()),
		Active:   ticks.Ms(cfg.ActiveWindow()),
		Cooldown: ticks.Ms(cfg.Cooldown()),
		Return:   ticks.Ms(cfg.ReturnWindow()),
	}
}

// Supervisor is the timing state machine. Each window is chained to the end
// of the previous one, so window boundaries fall at fixed offsets from the
// trigger press regardless of when the task happens to be stepped.
type Supervisor struct {
	windows   Windows
	threshold float64
	input     trigger.Input
	flags     Flags

	state       State
	window      ticks.Deadline
	runID       uuid.UUID
	pressedAt   ticks.Ticks
	engagements int
}

// New creates a supervisor reading in against threshold volts.
func New(w Windows, in trigger.Input, threshold float64, flags Flags) *Supervisor {
	return &Supervisor{windows: w, threshold: threshold, input: in, flags: flags}
}

func put(f *share.Flag[bool], v bool) {
	if f.Get() != v {
		debug.Flag(f.Name(), v)
	}
	f.Put(v)
}

// Step advances the machine by at most one transition.
func (s *Supervisor) Step(now ticks.Ticks) {
	switch s.state {
	case Init:
		put(s.flags.Start, false)
		put(s.flags.Stop, false)
		put(s.flags.Return, false)
		put(s.flags.Button, false)
		s.state = WaitTrigger

	case WaitTrigger:
		if s.flags.Button.Get() {
			// Back from ReturnWindow: the engagement's last edge.
			put(s.flags.Button, false)
			return
		}
		if !trigger.Pressed(s.input, s.threshold) {
			return
		}
		s.runID = uuid.New()
		s.pressedAt = now
		s.engagements++
		debug.Live("Trigger pressed, engagement %s", s.runID)
		put(s.flags.Button, true)
		s.window.Start(now, s.windows.Wait)
		s.state = WaitWindow

	case WaitWindow:
		if !s.window.Expired(now) {
			return
		}
		put(s.flags.Start, true)
		s.window.Extend(s.windows.Active)
		s.state = ActiveWindow

	case ActiveWindow:
		if !s.window.Expired(now) {
			return
		}
		put(s.flags.Start, false)
		put(s.flags.Stop, true)
		s.window.Extend(s.windows.Cooldown)
		s.state = Cooldown

	case Cooldown:
		if !s.window.Expired(now) {
			return
		}
		put(s.flags.Stop, false)
		put(s.flags.Return, true)
		s.window.Extend(s.windows.Return)
		s.state = ReturnWindow

	case ReturnWindow:
		if !s.window.Expired(now) {
			return
		}
		put(s.flags.Return, false)
		s.window.Stop()
		debug.Info("Engagement %s complete (%d ms)", s.runID, ticks.Diff(now, s.pressedAt))
		s.state = WaitTrigger
	}
}

// State returns the current state name.
func (s *Supervisor) State() string { return s.state.String() }

// Current returns the current state.
func (s *Supervisor) Current() State { return s.state }

// RunID returns the ID of the current or last engagement (zero UUID before
// the first press).
func (s *Supervisor) RunID() uuid.UUID { return s.runID }

// Engagements returns the number of trigger presses handled.
func (s *Supervisor) Engagements() int { return s.engagements }

// Remaining returns the milliseconds left in the current window, 0 when no
// window is running.
func (s *Supervisor) Remaining(now ticks.Ticks) int32 {
	if !s.window.Armed() {
		return 0
	}
	if d := ticks.Diff(s.window.End(), now); d > 0 {
		return d
	}
	return 0
}

// Flags returns the flags the supervisor writes.
func (s *Supervisor) Flags() Flags { return s.flags }
