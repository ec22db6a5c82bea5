package sched

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/share"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// Ordering selects which end of the priority scale runs first.
type Ordering int

const (
	// HigherFirst steps larger priority numbers first.
	HigherFirst Ordering = iota
	// LowerFirst steps smaller priority numbers first.
	LowerFirst
)

// ParseOrdering maps a config string to an Ordering.
func ParseOrdering(s string) (Ordering, error) {
	switch s {
	case "", "higher_first":
		return HigherFirst, nil
	case "lower_first":
		return LowerFirst, nil
	default:
		return HigherFirst, fmt.Errorf("unknown scheduler ordering %q", s)
	}
}

func (o Ordering) String() string {
	if o == LowerFirst {
		return "lower_first"
	}
	return "higher_first"
}

// Transition is one recorded state change of a task.
type Transition struct {
	Task string
	From string
	To   string
	At   ticks.Ticks
}

// Config configures a Scheduler.
type Config struct {
	Ordering Ordering
	// TraceDepth > 0 keeps the most recent TraceDepth state transitions.
	TraceDepth int
	// AfterScan, if set, is called at the end of every RunOnce.
	AfterScan func(now ticks.Ticks)
}

// Scheduler dispatches registered tasks by priority and period.
type Scheduler struct {
	cfg   Config
	tasks []*Task
	trace *share.Queue[Transition]
	seq   int
}

// New creates an empty scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{cfg: cfg}
	if cfg.TraceDepth > 0 {
		s.trace = share.NewQueue[Transition]("trace", cfg.TraceDepth, share.OverwriteOldest)
	}
	return s
}

// Register adds a task. Tasks of equal priority keep registration order.
// A task's first deadline is the tick of the first RunOnce that sees it.
func (s *Scheduler) Register(t *Task) {
	t.seq = s.seq
	s.seq++
	t.scheduled = false
	s.tasks = append(s.tasks, t)
	sort.SliceStable(s.tasks, func(i, j int) bool {
		a, b := s.tasks[i], s.tasks[j]
		if a.priority != b.priority {
			if s.cfg.Ordering == LowerFirst {
				return a.priority < b.priority
			}
			return a.priority > b.priority
		}
		return a.seq < b.seq
	})
	debug.Verbose("Scheduler: registered %s (priority=%d, period=%dms)", t.name, t.priority, t.period)
}

// Tasks returns the registered tasks in dispatch order.
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// RunOnce performs one scan: every task whose deadline has been reached is
// stepped once, in priority order. Deadlines advance by exactly one period
// per step (fixed phase), so a task that fell behind is stepped again on each
// following scan until it has caught up. Returns the number of steps taken.
func (s *Scheduler) RunOnce(now ticks.Ticks) int {
	stepped := 0
	for _, t := range s.tasks {
		if !t.scheduled {
			t.next = now
			t.scheduled = true
		}
		if !ticks.Elapsed(now, t.next) {
			continue
		}
		if ticks.Diff(now, t.next) > 0 {
			t.stats.Late++
		}

		before := t.body.State()
		start := time.Now()
		t.body.Step(now)
		d := time.Since(start)

		t.stats.Runs++
		t.stats.TotalStep += d
		if d > t.stats.MaxStep {
			t.stats.MaxStep = d
		}
		t.next = ticks.Add(t.next, t.period)
		stepped++

		if after := t.body.State(); after != before {
			debug.Transition(t.name, before, after)
			if s.trace != nil {
				_ = s.trace.Push(Transition{Task: t.name, From: before, To: after, At: now})
			}
		}
	}
	if s.cfg.AfterScan != nil {
		s.cfg.AfterScan(now)
	}
	return stepped
}

// Run scans until ctx is cancelled (the operator abort), sleeping between
// scans until the earliest pending deadline. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, clk ticks.Clock) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := clk.Now()
		s.RunOnce(now)

		wait := s.untilNext(clk.Now())
		if wait <= 0 {
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(time.Duration(wait) * time.Millisecond)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// untilNext returns milliseconds until the earliest task deadline.
func (s *Scheduler) untilNext(now ticks.Ticks) int32 {
	if len(s.tasks) == 0 {
		return 1
	}
	var wait int32 = 1 << 30
	for _, t := range s.tasks {
		if !t.scheduled {
			return 0
		}
		if d := ticks.Diff(t.next, now); d < wait {
			wait = d
		}
	}
	return wait
}

// TaskStats is a read-only profile row for one task.
type TaskStats struct {
	Name     string        `json:"name"`
	Priority int           `json:"priority"`
	PeriodMs int32         `json:"period_ms"`
	State    string        `json:"state"`
	Runs     uint64        `json:"runs"`
	Late     uint64        `json:"late"`
	AvgStep  time.Duration `json:"avg_step_ns"`
	MaxStep  time.Duration `json:"max_step_ns"`
}

// Stats returns profiling rows in dispatch order.
func (s *Scheduler) Stats() []TaskStats {
	out := make([]TaskStats, 0, len(s.tasks))
	for _, t := range s.tasks {
		row := TaskStats{
			Name:     t.name,
			Priority: t.priority,
			PeriodMs: t.period,
			State:    t.body.State(),
			Runs:     t.stats.Runs,
			Late:     t.stats.Late,
			MaxStep:  t.stats.MaxStep,
		}
		if t.stats.Runs > 0 {
			row.AvgStep = t.stats.TotalStep / time.Duration(t.stats.Runs)
		}
		out = append(out, row)
	}
	return out
}

// Trace returns recorded transitions, oldest first. Nil if tracing is off.
func (s *Scheduler) Trace() []Transition {
	if s.trace == nil {
		return nil
	}
	return s.trace.Items()
}

// PrintStats logs the profile table at info level.
func (s *Scheduler) PrintStats() {
	debug.Summary("Task Profile")
	for _, row := range s.Stats() {
		debug.Info("%-10s prio=%d period=%dms runs=%d late=%d avg=%v max=%v state=%s",
			row.Name, row.Priority, row.PeriodMs, row.Runs, row.Late, row.AvgStep, row.MaxStep, row.State)
	}
}
