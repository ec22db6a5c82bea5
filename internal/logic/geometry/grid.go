package geometry

import "github.com/cjeanneret/PanTurret/internal/config"

// FrameGrid maps pixel coordinates of a thermal frame to target offsets.
type FrameGrid struct {
	Width    int
	Height   int
	Centered bool // offsets from the frame center, y pointing up
	MirrorX  bool // sensor image is horizontally mirrored
}

// NewFrameGrid builds the frame grid from the thermal configuration.
func NewFrameGrid(cfg *config.Config) FrameGrid {
	return FrameGrid{
		Width:    cfg.Thermal.Width,
		Height:   cfg.Thermal.Height,
		Centered: cfg.CenteredOrigin(),
		MirrorX:  cfg.Thermal.MirrorX,
	}
}

// Offset converts a (column, row) pixel position into a target offset.
// Centered offsets are (x - width/2, height/2 - y); otherwise the position
// is returned relative to the top-left corner. Mirroring is applied first.
func (g FrameGrid) Offset(col, row float64) (x, y float64) {
	if g.MirrorX {
		col = float64(g.Width-1) - col
	}
	if !g.Centered {
		return col, row
	}
	return col - float64(g.Width)/2, float64(g.Height)/2 - row
}
