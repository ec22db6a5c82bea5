// Package thermal models the MLX90640-style thermal array: whole frames
// assembled from two interleaved subpages and polled without blocking.
package thermal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cjeanneret/PanTurret/internal/debug"
)

// Frame is a width x height grid of relative IR intensities, row-major.
type Frame struct {
	Width  int
	Height int
	Pixels []float64
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height, Pixels: make([]float64, width*height)}
}

// At returns the pixel at column col, row row.
func (f Frame) At(col, row int) float64 {
	return f.Pixels[row*f.Width+col]
}

// Set writes the pixel at column col, row row.
func (f Frame) Set(col, row int, v float64) {
	f.Pixels[row*f.Width+col] = v
}

// Valid reports whether the pixel slice matches the frame dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pixels) == f.Width*f.Height
}

// Limits returns the minimum and maximum pixel values.
func (f Frame) Limits() (lo, hi float64) {
	if len(f.Pixels) == 0 {
		return 0, 0
	}
	lo, hi = f.Pixels[0], f.Pixels[0]
	for _, p := range f.Pixels[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}

// Sensor is the thermal sensor capability. PollFrame never blocks: it
// returns false until a complete frame is available.
type Sensor interface {
	PollFrame() (Frame, bool)
}

// Source reads raw subpages from the sensor hardware. Each read returns the
// subpage number the sensor measured and a full-size buffer in which only
// that subpage's chessboard half is meaningful.
type Source interface {
	HasData() bool
	ReadSubpage() (page int, data []float64, err error)
}

// Assembler turns a Source into a Sensor, merging subpage 0 and subpage 1
// in the chess pattern. A frame is only returned once both halves arrived.
type Assembler struct {
	src    Source
	width  int
	height int
	got    [2]bool
	frame  Frame
	faults int
}

// NewAssembler creates a frame assembler for a width x height sensor.
func NewAssembler(src Source, width, height int) *Assembler {
	return &Assembler{src: src, width: width, height: height, frame: NewFrame(width, height)}
}

// PollFrame reads at most one subpage per call.
func (a *Assembler) PollFrame() (Frame, bool) {
	if !a.src.HasData() {
		return Frame{}, false
	}
	page, data, err := a.src.ReadSubpage()
	if err == nil && len(data) != a.width*a.height {
		err = fmt.Errorf("got %d pixels, want %d", len(data), a.width*a.height)
	}
	if err == nil && page != 0 && page != 1 {
		err = fmt.Errorf("invalid subpage %d", page)
	}
	if err != nil {
		a.faults++
		a.got = [2]bool{}
		debug.Errorf("thermal subpage read: %v", err)
		return Frame{}, false
	}
	for row := 0; row < a.height; row++ {
		for col := 0; col < a.width; col++ {
			if (row+col)%2 == page {
				a.frame.Set(col, row, data[row*a.width+col])
			}
		}
	}
	a.got[page] = true
	if !a.got[0] || !a.got[1] {
		return Frame{}, false
	}
	out := a.frame
	a.frame = NewFrame(a.width, a.height)
	a.got = [2]bool{}
	debug.Trace("thermal frame assembled (%dx%d)", a.width, a.height)
	return out, true
}

// Faults returns the number of failed subpage reads.
func (a *Assembler) Faults() int { return a.faults }

// CSV renders the frame one row per line. With limits of length 2, values
// are rescaled from the frame range into [limits[0], limits[1]] and
// truncated to integers.
func CSV(f Frame, limits []float64) []string {
	base, lo, scale := 0.0, 0.0, 1.0
	if len(limits) == 2 {
		var hi float64
		lo, hi = f.Limits()
		if hi > lo {
			base = limits[0]
			scale = (limits[1] - limits[0]) / (hi - lo)
		} else {
			lo = 0
		}
	}
	lines := make([]string, 0, f.Height)
	for row := 0; row < f.Height; row++ {
		var b strings.Builder
		for col := 0; col < f.Width; col++ {
			if col > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(base + (f.At(col, row)-lo)*scale)))
		}
		lines = append(lines, b.String())
	}
	return lines
}

// Dump logs the frame at verbose level.
func Dump(f Frame) {
	if !debug.IsEnabled(debug.LevelVerbose) {
		return
	}
	debug.Verbose("thermal frame %dx%d", f.Width, f.Height)
	for i, line := range CSV(f, []float64{0, 99}) {
		debug.Verbose("%2d: %s", i, line)
	}
}
