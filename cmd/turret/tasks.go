package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/logic/supervisor"
	"github.com/cjeanneret/PanTurret/internal/logic/targeting"
	"github.com/cjeanneret/PanTurret/internal/logic/turret"
	"github.com/cjeanneret/PanTurret/internal/sched"
	"github.com/cjeanneret/PanTurret/internal/ticks"
	"github.com/cjeanneret/PanTurret/internal/web"
)

// publishEveryMs throttles telemetry snapshots.
const publishEveryMs = 50

// tasks is one generation of the two cooperative tasks. A soft restart
// builds a new one on the same rig.
type tasks struct {
	sched *sched.Scheduler
	flags supervisor.Flags
	sup   *supervisor.Supervisor
	tur   *turret.Turret

	telemetry   *web.Telemetry
	lastPublish ticks.Ticks
	published   bool
}

// newTasks registers the timing and turret tasks. telemetry may be nil.
func newTasks(cfg *config.Config, r *rig, telemetry *web.Telemetry) (*tasks, error) {
	ordering, err := sched.ParseOrdering(cfg.Scheduler.Ordering)
	if err != nil {
		return nil, err
	}
	solver, err := targeting.NewSolverFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create solver: %w", err)
	}

	t := &tasks{flags: supervisor.NewFlags(), telemetry: telemetry}
	t.sched = sched.New(sched.Config{
		Ordering:   ordering,
		TraceDepth: cfg.Scheduler.TraceDepth,
		AfterScan:  t.afterScan,
	})
	t.sup = supervisor.New(supervisor.WindowsFromConfig(cfg), r.button, cfg.Trigger.ThresholdVolts, t.flags)
	t.tur = turret.New(turret.ParamsFromConfig(cfg), turret.Hardware{
		Drive:    r.drive,
		Counter:  r.counter,
		Servo:    r.servo,
		Flywheel: r.flywheel,
		Sensor:   r.sensor,
	}, solver, t.flags)

	t.sched.Register(sched.NewTask("timing", cfg.Scheduler.TimingTask.Priority, int32(cfg.Scheduler.TimingTask.PeriodMs), t.sup))
	t.sched.Register(sched.NewTask("turret", cfg.Scheduler.TurretTask.Priority, int32(cfg.Scheduler.TurretTask.PeriodMs), t.tur))
	return t, nil
}

func (t *tasks) afterScan(now ticks.Ticks) {
	if t.telemetry == nil {
		return
	}
	if t.published && ticks.Diff(now, t.lastPublish) < publishEveryMs {
		return
	}
	t.lastPublish, t.published = now, true
	t.telemetry.Publish(t.snapshot(now))
}

// snapshot must be called from the scheduler goroutine.
func (t *tasks) snapshot(now ticks.Ticks) web.Snapshot {
	s := web.Snapshot{
		Tick:        uint32(now),
		Engagements: t.sup.Engagements(),
		Timing:      t.sup.State(),
		RemainingMs: t.sup.Remaining(now),
		Flags: web.FlagView{
			Start:  t.flags.Start.Get(),
			Stop:   t.flags.Stop.Get(),
			Return: t.flags.Return.Get(),
			Button: t.flags.Button.Get(),
		},
		Turret: t.tur.Snapshot(),
		Tasks:  t.sched.Stats(),
	}
	if id := t.sup.RunID(); id != uuid.Nil {
		s.RunID = id.String()
	}
	return s
}
