package geometry

import (
	"math"

	"github.com/cjeanneret/PanTurret/internal/config"
)

// CountsCalculator converts pan angles to encoder counts and back.
type CountsCalculator struct {
	countsPerDegree float64
	heading         int64
	home            int64
}

// NewCountsCalculator creates a counts calculator from configuration.
func NewCountsCalculator(cfg *config.Config) *CountsCalculator {
	return &CountsCalculator{
		countsPerDegree: cfg.Aim.CountsPer180 / 180.0,
		heading:         cfg.Aim.HeadingCounts,
		home:            cfg.Aim.HomeCounts,
	}
}

// CountsPerDegree returns the encoder counts per degree of pan.
func (c *CountsCalculator) CountsPerDegree() float64 {
	return c.countsPerDegree
}

// CountsFromAngle converts a pan angle (in degrees) to encoder counts,
// truncated toward zero.
func (c *CountsCalculator) CountsFromAngle(angleDegrees float64) int64 {
	return int64(angleDegrees * c.countsPerDegree)
}

// AngleFromCounts converts encoder counts to a pan angle in degrees.
func (c *CountsCalculator) AngleFromCounts(counts int64) float64 {
	if c.countsPerDegree == 0 {
		return 0
	}
	return float64(counts) / c.countsPerDegree
}

// AimPosition returns the absolute position for a bearing relative to the
// pre-aim heading.
func (c *CountsCalculator) AimPosition(angleDegrees float64) int64 {
	return c.AimFrom(c.heading, angleDegrees)
}

// AimFrom returns the absolute position for a bearing relative to anchor.
func (c *CountsCalculator) AimFrom(anchor int64, angleDegrees float64) int64 {
	return anchor + c.CountsFromAngle(angleDegrees)
}

// Heading returns the pre-aim heading in counts.
func (c *CountsCalculator) Heading() int64 { return c.heading }

// Home returns the return position in counts.
func (c *CountsCalculator) Home() int64 { return c.home }

// WithinTolerance reports whether position is within tol counts of target.
func WithinTolerance(position, target, tol int64) bool {
	return math.Abs(float64(position-target)) <= float64(tol)
}
