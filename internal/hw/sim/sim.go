// Package sim is a simulated pan plant for mock mode and integration tests:
// a DC drive that integrates duty into position, a wrapping encoder counter
// reading that position, and a thermal scene with one heat source.
package sim

import (
	"math"
	"sync"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw"
	"github.com/cjeanneret/PanTurret/internal/ticks"
)

// Plant is the simulated pan axis. It implements motor.Drive and
// encoder.Counter; Scene implements thermal.Source on top of it.
type Plant struct {
	mu       sync.Mutex
	clk      ticks.Clock
	last     ticks.Ticks
	speed    float64 // counts per ms at 100% duty
	period   uint32
	position float64
	duty     float64
	enabled  bool
}

// NewPlant creates a plant at position 0 driven by clk.
func NewPlant(clk ticks.Clock, countsPerMsFull float64, period uint32) *Plant {
	return &Plant{clk: clk, last: clk.Now(), speed: countsPerMsFull, period: period}
}

// advance integrates motion up to the current tick. Callers hold mu.
func (p *Plant) advance() {
	now := p.clk.Now()
	dt := ticks.Diff(now, p.last)
	if dt <= 0 {
		return
	}
	p.last = now
	if p.enabled {
		p.position += p.duty / 100 * p.speed * float64(dt)
	}
}

func (p *Plant) Enable() hw.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.enabled = true
	return hw.Ok
}

func (p *Plant) Disable() hw.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.enabled = false
	p.duty = 0
	return hw.Ok
}

func (p *Plant) SetDutyCycle(level float64) hw.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.duty = math.Max(-100, math.Min(100, level))
	return hw.Ok
}

// Count returns the position folded into [0, period], as a hardware
// counter would.
func (p *Plant) Count() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	span := float64(p.period) + 1
	c := math.Mod(math.Floor(p.position), span)
	if c < 0 {
		c += span
	}
	return uint32(c)
}

func (p *Plant) Period() uint32 { return p.period }

// Position returns the true unwrapped position in counts.
func (p *Plant) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.position
}

// SetPosition teleports the axis (test setup).
func (p *Plant) SetPosition(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.position = pos
}

// Duty returns the applied duty level.
func (p *Plant) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Enabled reports whether the simulated drive is enabled.
func (p *Plant) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Scene renders what the thermal sensor sees from the plant's current
// position: a 3x3 heat source at a fixed absolute bearing over a flat
// background. One subpage becomes available every interval.
type Scene struct {
	plant           *Plant
	clk             ticks.Clock
	width, height   int
	degPerPixel     float64
	countsPerDegree float64
	target          float64 // absolute position of the heat source, counts
	interval        int32
	next            ticks.Ticks
	page            int
}

// NewScene builds the scene from configuration. The heat source sits
// sim.target_angle_deg away from the pre-aim heading.
func NewScene(cfg *config.Config, plant *Plant, clk ticks.Clock) *Scene {
	cpd := cfg.Aim.CountsPer180 / 180
	s := &Scene{
		plant:           plant,
		clk:             clk,
		width:           cfg.Thermal.Width,
		height:          cfg.Thermal.Height,
		degPerPixel:     cfg.Thermal.FOVDeg / float64(cfg.Thermal.Width),
		countsPerDegree: cpd,
		target:          float64(cfg.Aim.HeadingCounts) + cfg.Sim.TargetAngleDeg*cpd,
		interval:        int32(cfg.Sim.FrameIntervalMs),
	}
	s.next = ticks.Add(clk.Now(), s.interval)
	debug.Verbose("sim: heat source at %.0f counts", s.target)
	return s
}

// MoveTarget places the heat source at an absolute position.
func (s *Scene) MoveTarget(counts float64) { s.target = counts }

func (s *Scene) HasData() bool {
	return ticks.Elapsed(s.clk.Now(), s.next)
}

func (s *Scene) ReadSubpage() (int, []float64, error) {
	s.next = ticks.Add(s.clk.Now(), s.interval)
	page := s.page
	s.page ^= 1
	return page, s.Render(), nil
}

// Render draws the full frame for the current pan position.
func (s *Scene) Render() []float64 {
	data := make([]float64, s.width*s.height)
	for i := range data {
		data[i] = 20
	}
	rel := (s.target - s.plant.Position()) / s.countsPerDegree // degrees, + to the right
	col := int(math.Round(float64(s.width)/2 + rel/s.degPerPixel))
	row := s.height / 2
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			c, r := col+dc, row+dr
			if c < 0 || c >= s.width || r < 0 || r >= s.height {
				continue
			}
			v := 30.0
			if dr == 0 && dc == 0 {
				v = 36
			}
			data[r*s.width+c] = v
		}
	}
	return data
}
