package supervisor

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/hw/trigger"
	"github.com/cjeanneret/PanTurret/internal/sched"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

type edge struct {
	at    int32
	flag  string
	value bool
}

// recordEdges snapshots flags after each scan and records changes relative
// to the trigger press at tick 0.
type recorder struct {
	flags Flags
	prev  map[string]bool
	edges []edge
}

func newRecorder(f Flags) *recorder {
	return &recorder{flags: f, prev: map[string]bool{}}
}

func (r *recorder) scan(now ticks.Ticks) {
	for _, f := range []struct {
		name string
		v    bool
	}{
		{"Start", r.flags.Start.Get()},
		{"Stop", r.flags.Stop.Get()},
		{"Return", r.flags.Return.Get()},
		{"Button", r.flags.Button.Get()},
	} {
		if r.prev[f.name] != f.v {
			r.edges = append(r.edges, edge{at: ticks.Diff(now, 0), flag: f.name, value: f.v})
			r.prev[f.name] = f.v
		}
	}
}

func TestSupervisor_EndToEndTiming(t *testing.T) {
	cfg := config.Default()
	flags := NewFlags()
	button := trigger.NewSoft(cfg.Trigger.HighVolts)
	sup := New(WindowsFromConfig(cfg), button, cfg.Trigger.ThresholdVolts, flags)
	rec := newRecorder(flags)

	s := sched.New(sched.Config{AfterScan: rec.scan})
	s.Register(sched.NewTask("timing", cfg.Scheduler.TimingTask.Priority, int32(cfg.Scheduler.TimingTask.PeriodMs), sup))

	// Init runs one period before the press.
	start := ticks.Add(0, -20)
	s.RunOnce(start)
	if sup.Current() != WaitTrigger {
		t.Fatalf("state after first step = %v, want WaitTrigger", sup.Current())
	}
	button.Press()

	for ms := int32(-19); ms <= 20000; ms++ {
		s.RunOnce(ticks.Add(0, ms))
	}

	want := []edge{
		{0, "Button", true},
		{5000, "Start", true},
		{15000, "Start", false},
		{15000, "Stop", true},
		{16000, "Stop", false},
		{16000, "Return", true},
		{19000, "Return", false},
		{19020, "Button", false},
	}
	if !reflect.DeepEqual(rec.edges, want) {
		t.Errorf("flag edges:\n got  %v\n want %v", rec.edges, want)
	}
	if sup.Current() != WaitTrigger {
		t.Errorf("state after cycle = %v, want WaitTrigger (cyclic)", sup.Current())
	}
	if sup.Engagements() != 1 || sup.RunID() == uuid.Nil {
		t.Errorf("engagements = %d, run id = %v", sup.Engagements(), sup.RunID())
	}
}

func TestSupervisor_LateStepsKeepWindowPhase(t *testing.T) {
	flags := NewFlags()
	button := trigger.NewSoft(3.3)
	sup := New(Windows{Wait: 100, Active: 200, Cooldown: 50, Return: 100}, button, 2.0, flags)

	sup.Step(0) // Init
	button.Press()
	sup.Step(0) // press at 0
	sup.Step(130)
	if !flags.Start.Get() {
		t.Fatal("Start not set after wait window")
	}
	// Active window still ends at 300, not 330.
	sup.Step(299)
	if !flags.Start.Get() {
		t.Fatal("Start cleared early")
	}
	sup.Step(300)
	if flags.Start.Get() || !flags.Stop.Get() {
		t.Fatal("active window should end at 300")
	}
}

func TestSupervisor_WaitsForThreshold(t *testing.T) {
	flags := NewFlags()
	in := &volts{v: 1.5}
	sup := New(Windows{Wait: 10, Active: 10, Cooldown: 10, Return: 10}, in, 2.0, flags)
	sup.Step(0)
	for i := 1; i < 10; i++ {
		sup.Step(ticks.Ticks(i))
	}
	if sup.Current() != WaitTrigger || flags.Button.Get() {
		t.Fatal("1.5 V must not count as pressed")
	}
	in.v = 2.0
	sup.Step(10)
	if sup.Current() != WaitWindow || !flags.Button.Get() {
		t.Fatal("2.0 V should count as pressed")
	}
}

func TestSupervisor_SecondEngagementGetsNewRunID(t *testing.T) {
	flags := NewFlags()
	button := trigger.NewSoft(3.3)
	sup := New(Windows{Wait: 1, Active: 1, Cooldown: 1, Return: 1}, button, 2.0, flags)
	sup.Step(0)
	button.Press()
	now := ticks.Ticks(0)
	for i := 0; i < 10; i++ {
		sup.Step(now)
		now++
	}
	first := sup.RunID()
	button.Press()
	sup.Step(now)
	if sup.RunID() == first || sup.Engagements() != 2 {
		t.Errorf("second engagement: id %v (first %v), engagements %d", sup.RunID(), first, sup.Engagements())
	}
}

func TestSupervisor_OneFlagEdgePerStep(t *testing.T) {
	flags := NewFlags()
	button := trigger.NewSoft(3.3)
	sup := New(Windows{Wait: 10, Active: 10, Cooldown: 10, Return: 10}, button, 2.0, flags)
	sup.Step(0)
	button.Press()

	read := func() [4]bool {
		return [4]bool{flags.Start.Get(), flags.Stop.Get(), flags.Return.Get(), flags.Button.Get()}
	}
	prev := read()
	for now := ticks.Ticks(0); now <= 60; now++ {
		sup.Step(now)
		cur := read()
		changed := 0
		for i := range cur {
			if cur[i] != prev[i] {
				changed++
			}
		}
		// ActiveWindow -> Cooldown and Cooldown -> ReturnWindow hand over
		// between two flags; every other step moves at most one.
		if changed > 2 || (changed == 2 && cur[3] != prev[3]) {
			t.Errorf("step at %d changed %v -> %v", now, prev, cur)
		}
		prev = cur
	}
	if sup.Current() != WaitTrigger || flags.Button.Get() {
		t.Errorf("state = %v button = %v, want WaitTrigger with Button cleared", sup.Current(), flags.Button.Get())
	}
}

func TestSupervisor_Remaining(t *testing.T) {
	flags := NewFlags()
	button := trigger.NewSoft(3.3)
	sup := New(Windows{Wait: 5000, Active: 1, Cooldown: 1, Return: 1}, button, 2.0, flags)
	if sup.Remaining(0) != 0 {
		t.Error("no window running yet")
	}
	sup.Step(0)
	button.Press()
	sup.Step(100)
	if got := sup.Remaining(1100); got != 4000 {
		t.Errorf("Remaining = %d, want 4000", got)
	}
}

func TestState_String(t *testing.T) {
	if ReturnWindow.String() != "ReturnWindow" || State(42).String() != "Unknown" {
		t.Error("unexpected state names")
	}
}

type volts struct{ v float64 }

func (v *volts) Volts() float64 { return v.v }
