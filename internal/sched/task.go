// Package sched implements a cooperative, priority-ordered, fixed-period task
// dispatcher. All tasks run on the caller's goroutine; a task's Step runs to
// completion before any other task is considered.
package sched

import (
	"time"

	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// Machine is a task body: a state machine advanced by exactly one step per
// call. Step must never block; a wait for external readiness is expressed by
// returning and checking again on the next call.
type Machine interface {
	Step(now ticks.Ticks)
	State() string
}

// Task binds a Machine to its scheduling parameters.
type Task struct {
	name     string
	priority int
	period   int32 // ms
	body     Machine

	next      ticks.Ticks
	scheduled bool
	seq       int

	stats Stats
}

// Stats holds per-task profiling counters.
type Stats struct {
	Runs      uint64
	Late      uint64 // steps that started after their deadline tick
	TotalStep time.Duration
	MaxStep   time.Duration
}

// NewTask creates a task stepping body every periodMs milliseconds.
// A period below 1 ms is raised to 1 ms.
func NewTask(name string, priority int, periodMs int32, body Machine) *Task {
	if periodMs < 1 {
		periodMs = 1
	}
	return &Task{
		name:     name,
		priority: priority,
		period:   periodMs,
		body:     body,
	}
}

func (t *Task) Name() string              { return t.name }
func (t *Task) Priority() int             { return t.priority }
func (t *Task) Period() int32             { return t.period }
func (t *Task) Body() Machine             { return t.body }
func (t *Task) Stats() Stats              { return t.stats }
func (t *Task) NextDeadline() ticks.Ticks { return t.next }
