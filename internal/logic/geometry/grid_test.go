package geometry

import (
	"testing"

	"github.com/cjeanneret/PanTurret/internal/config"
)

func TestFrameGrid_Offset(t *testing.T) {
	cases := []struct {
		name         string
		grid         FrameGrid
		col, row     float64
		wantX, wantY float64
	}{
		{"top-left origin", FrameGrid{Width: 32, Height: 24}, 10, 5, 10, 5},
		{"centered", FrameGrid{Width: 32, Height: 24, Centered: true}, 10, 5, -6, 7},
		{"centered middle", FrameGrid{Width: 32, Height: 24, Centered: true}, 16, 12, 0, 0},
		{"mirrored top-left", FrameGrid{Width: 32, Height: 24, MirrorX: true}, 10, 5, 21, 5},
		{"mirrored centered", FrameGrid{Width: 32, Height: 24, Centered: true, MirrorX: true}, 10, 5, 5, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.grid.Offset(tc.col, tc.row)
			if x != tc.wantX || y != tc.wantY {
				t.Errorf("Offset(%v, %v) = (%v, %v), want (%v, %v)", tc.col, tc.row, x, y, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestNewFrameGrid_FromConfig(t *testing.T) {
	cfg := config.Default()
	g := NewFrameGrid(cfg)
	if g.Width != 32 || g.Height != 24 || !g.Centered || g.MirrorX {
		t.Errorf("NewFrameGrid(default) = %+v", g)
	}
}
