// Package targeting turns a thermal frame into an aim position: an
// intensity-weighted centroid of the hot region and the single hottest
// pixel are converted to bearings and fused with fixed weights.
package targeting

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/hw/thermal"
	"github.com/cjeanneret/PanTurret/internal/logic/geometry"
)

var (
	ErrEmptyFrame = errors.New("targeting: frame has no pixels")
	ErrFlatFrame  = errors.New("targeting: frame has no intensity range")
	ErrNoMass     = errors.New("targeting: no pixel inside the keep band")
)

// Point is a target offset in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Params controls centroid extraction and fusion.
type Params struct {
	IgnoreLow      float64 // percent; pixels below both bounds are ignored
	IgnoreHigh     float64
	Grid           geometry.FrameGrid
	CentroidWeight float64
	HotspotWeight  float64
}

// ParamsFromConfig builds targeting parameters from configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		IgnoreLow:      cfg.Thermal.IgnoreLow,
		IgnoreHigh:     cfg.Thermal.IgnoreHigh,
		Grid:           geometry.NewFrameGrid(cfg),
		CentroidWeight: cfg.Thermal.CentroidWeight,
		HotspotWeight:  cfg.Thermal.HotspotWeight,
	}
}

func checkFrame(f thermal.Frame) (lo, hi float64, err error) {
	if !f.Valid() {
		return 0, 0, ErrEmptyFrame
	}
	lo, hi = f.Limits()
	if hi <= lo {
		return lo, hi, ErrFlatFrame
	}
	return lo, hi, nil
}

// Centroid returns the intensity-weighted center of the pixels inside the
// keep band. Intensities are normalized to 0-100 and truncated before use.
func Centroid(f thermal.Frame, p Params) (Point, error) {
	lo, hi, err := checkFrame(f)
	if err != nil {
		return Point{}, err
	}
	scale := 100 / (hi - lo)
	var sx, sy, sum float64
	for row := 0; row < f.Height; row++ {
		for col := 0; col < f.Width; col++ {
			pix := float64(int((f.At(col, row) - lo) * scale))
			if pix < p.IgnoreLow && pix < p.IgnoreHigh {
				continue
			}
			sx += pix * float64(col)
			sy += pix * float64(row)
			sum += pix
		}
	}
	if sum == 0 {
		return Point{}, ErrNoMass
	}
	x, y := p.Grid.Offset(sx/sum, sy/sum)
	return Point{X: x, Y: y}, nil
}

// Hotspot returns the location of the frame maximum, first match in scan
// order.
func Hotspot(f thermal.Frame, g geometry.FrameGrid) (Point, error) {
	if !f.Valid() {
		return Point{}, ErrEmptyFrame
	}
	_, hi := f.Limits()
	for row := 0; row < f.Height; row++ {
		for col := 0; col < f.Width; col++ {
			if f.At(col, row) == hi {
				x, y := g.Offset(float64(col), float64(row))
				return Point{X: x, Y: y}, nil
			}
		}
	}
	return Point{}, ErrEmptyFrame
}

// Solution is the result of one acquisition.
type Solution struct {
	Centroid      Point   `json:"centroid"`
	Hotspot       Point   `json:"hotspot"`
	CentroidAngle float64 `json:"centroid_angle"` // degrees
	HotspotAngle  float64 `json:"hotspot_angle"`  // degrees
	Angle         float64 `json:"angle"`          // fused bearing, degrees
	Position      int64   `json:"position"`       // desired absolute position, counts
}

func (s Solution) String() string {
	return fmt.Sprintf("centroid=(%.2f,%.2f) hotspot=(%.2f,%.2f) angle=%.2f° position=%d",
		s.Centroid.X, s.Centroid.Y, s.Hotspot.X, s.Hotspot.Y, s.Angle, s.Position)
}

// Solver fuses centroid and hotspot bearings into a desired position.
type Solver struct {
	params Params
	fov    *geometry.FOVCalculator
	counts *geometry.CountsCalculator
}

// NewSolver creates a solver from explicit parameters and calculators.
func NewSolver(p Params, fov *geometry.FOVCalculator, counts *geometry.CountsCalculator) *Solver {
	return &Solver{params: p, fov: fov, counts: counts}
}

// NewSolverFromConfig creates a solver from configuration.
func NewSolverFromConfig(cfg *config.Config) (*Solver, error) {
	fov, err := geometry.NewFOVCalculator(cfg)
	if err != nil {
		return nil, fmt.Errorf("targeting: %w", err)
	}
	return NewSolver(ParamsFromConfig(cfg), fov, geometry.NewCountsCalculator(cfg)), nil
}

// Solve computes the target solution for a frame taken at the pre-aim heading.
func (s *Solver) Solve(f thermal.Frame) (Solution, error) {
	return s.SolveFrom(f, s.counts.Heading())
}

// SolveFrom computes the target solution for a frame taken with the pan axis
// at anchor counts.
func (s *Solver) SolveFrom(f thermal.Frame, anchor int64) (Solution, error) {
	c, err := Centroid(f, s.params)
	if err != nil {
		return Solution{}, err
	}
	h, err := Hotspot(f, s.params.Grid)
	if err != nil {
		return Solution{}, err
	}
	sol := Solution{
		Centroid:      c,
		Hotspot:       h,
		CentroidAngle: s.fov.AngleFromPixels(c.X),
		HotspotAngle:  s.fov.AngleFromPixels(h.X),
	}
	sol.Angle = s.params.CentroidWeight*sol.CentroidAngle + s.params.HotspotWeight*sol.HotspotAngle
	sol.Position = s.counts.AimFrom(anchor, sol.Angle)
	debug.Verbose("target: %s", sol)
	return sol, nil
}
