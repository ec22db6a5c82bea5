package geometry

import (
	"fmt"

	"github.com/cjeanneret/PanTurret/internal/config"
)

// FOVCalculator converts thermal frame pixel offsets into horizontal angles.
type FOVCalculator struct {
	fovDeg float64
	width  int
}

// NewFOVCalculator creates a new FOV calculator from the thermal sensor
// configuration. Returns an error if the frame width or field of view is not
// positive (required for calculations).
func NewFOVCalculator(cfg *config.Config) (*FOVCalculator, error) {
	if cfg.Thermal.Width <= 0 {
		return nil, fmt.Errorf("thermal width must be > 0 for FOV calculations, got %d", cfg.Thermal.Width)
	}
	if cfg.Thermal.FOVDeg <= 0 {
		return nil, fmt.Errorf("thermal fov_deg must be > 0 for FOV calculations, got %.2f", cfg.Thermal.FOVDeg)
	}
	return &FOVCalculator{fovDeg: cfg.Thermal.FOVDeg, width: cfg.Thermal.Width}, nil
}

// HorizontalFOV returns the sensor's horizontal field of view in degrees.
func (f *FOVCalculator) HorizontalFOV() float64 {
	return f.fovDeg
}

// DegreesPerPixel returns the angle covered by one pixel column.
// Formula: FOV_horizontal / width (55 / 32 for the MLX90640).
func (f *FOVCalculator) DegreesPerPixel() float64 {
	return f.fovDeg / float64(f.width)
}

// AngleFromPixels converts a horizontal pixel offset into degrees.
func (f *FOVCalculator) AngleFromPixels(px float64) float64 {
	return px * f.DegreesPerPixel()
}
