package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/logic/motion"
	"github.com/cjeanneret/PanTurret/internal/logic/pid"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// StepConfig parameterizes a step-response session.
type StepConfig struct {
	Runs       int
	DurationMs int32
	SampleMs   int32
	MaxCounts  float64 // |setpoint| limit
	MaxKp      float64
}

// StepConfigFromConfig reads the session parameters. Setpoints are limited
// to one revolution either way.
func StepConfigFromConfig(cfg *config.Config) StepConfig {
	return StepConfig{
		Runs:       cfg.Harness.Runs,
		DurationMs: int32(cfg.Harness.StepDurationMs),
		SampleMs:   int32(cfg.Harness.SampleMs),
		MaxCounts:  2 * cfg.Aim.CountsPer180,
		MaxKp:      10,
	}
}

// Sleep waits ms milliseconds on the session clock or until ctx is done.
type Sleep func(ctx context.Context, ms int32) error

// WallSleep sleeps on the wall clock.
func WallSleep(ctx context.Context, ms int32) error {
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session is the record of one step-response session.
type Session struct {
	ID        uuid.UUID
	Setpoints []float64
	Gains     []float64
	Runs      [][]Sample
}

// StepResponse runs closed-loop step responses on the pan axis on behalf of
// a host harness.
type StepResponse struct {
	dev   *Device
	axis  *motion.Controller
	clk   ticks.Clock
	sleep Sleep
	cfg   StepConfig
}

func NewStepResponse(dev *Device, axis *motion.Controller, clk ticks.Clock, sleep Sleep, cfg StepConfig) *StepResponse {
	if cfg.Runs < 1 {
		cfg.Runs = 1
	}
	if cfg.SampleMs < 1 {
		cfg.SampleMs = 1
	}
	return &StepResponse{dev: dev, axis: axis, clk: clk, sleep: sleep, cfg: cfg}
}

// Run prompts for every setpoint, then every gain, runs each response in
// turn and streams it. The axis is stopped when Run returns.
func (s *StepResponse) Run(ctx context.Context) (*Session, error) {
	defer s.axis.Stop()
	sess := &Session{ID: uuid.New()}
	debug.Info("harness: step-response session %s, %d run(s)", sess.ID, s.cfg.Runs)

	for i := 0; i < s.cfg.Runs; i++ {
		v, err := s.dev.Prompt(Param{Name: fmt.Sprintf("setpoint %d", i+1), Min: -s.cfg.MaxCounts, Max: s.cfg.MaxCounts})
		if err != nil {
			return sess, err
		}
		sess.Setpoints = append(sess.Setpoints, v)
	}
	for i := 0; i < s.cfg.Runs; i++ {
		v, err := s.dev.Prompt(Param{Name: fmt.Sprintf("kp %d", i+1), Min: 0, Max: s.cfg.MaxKp})
		if err != nil {
			return sess, err
		}
		sess.Gains = append(sess.Gains, v)
	}

	for i := range sess.Setpoints {
		samples, err := s.step(ctx, i, sess.Setpoints[i], sess.Gains[i])
		if err != nil {
			return sess, err
		}
		sess.Runs = append(sess.Runs, samples)
		if err := s.dev.Stream(samples); err != nil {
			return sess, fmt.Errorf("stream run %d: %w", i+1, err)
		}
	}
	debug.Info("harness: session %s complete", sess.ID)
	return sess, nil
}

// step records one response from a zeroed encoder.
func (s *StepResponse) step(ctx context.Context, i int, setpoint, kp float64) ([]Sample, error) {
	s.axis.Stop()
	s.axis.Zero()
	p := motion.Profile{Name: fmt.Sprintf("step%d", i+1), Gains: pid.Gains{Kp: kp}}
	if res := s.axis.MoveTo(int64(setpoint), p); res == hw.HardwareFault {
		return nil, fmt.Errorf("run %d: %s", i+1, res)
	}
	defer s.axis.Stop()

	samples := make([]Sample, 0, s.cfg.DurationMs/s.cfg.SampleMs+1)
	start := s.clk.Now()
	for {
		now := s.clk.Now()
		elapsed := ticks.Diff(now, start)
		if elapsed > s.cfg.DurationMs {
			break
		}
		if _, res := s.axis.Step(now); res == hw.HardwareFault {
			return samples, fmt.Errorf("run %d: %s", i+1, res)
		}
		samples = append(samples, Sample{Ms: int64(elapsed), Value: float64(s.axis.Position())})
		if err := s.sleep(ctx, s.cfg.SampleMs); err != nil {
			return samples, err
		}
	}
	debug.Live("harness: run %d to %.0f (Kp=%g) ended at %d", i+1, setpoint, kp, s.axis.Position())
	return samples, nil
}
