package thermal

import (
	"errors"
	"testing"
)

// scriptedSource replays subpage reads.
type scriptedSource struct {
	ready []bool
	pages []int
	data  [][]float64
	errs  []error
	reads int
	polls int
}

func (s *scriptedSource) HasData() bool {
	i := s.polls
	s.polls++
	if i < len(s.ready) {
		return s.ready[i]
	}
	return true
}

func (s *scriptedSource) ReadSubpage() (int, []float64, error) {
	i := s.reads
	s.reads++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.pages[i], s.data[i], err
}

func fill(w, h int, v float64) []float64 {
	d := make([]float64, w*h)
	for i := range d {
		d[i] = v
	}
	return d
}

func TestAssembler_MergesChessPattern(t *testing.T) {
	src := &scriptedSource{
		pages: []int{0, 1},
		data:  [][]float64{fill(4, 2, 10), fill(4, 2, 20)},
	}
	a := NewAssembler(src, 4, 2)

	if _, ok := a.PollFrame(); ok {
		t.Fatal("frame returned after a single subpage")
	}
	f, ok := a.PollFrame()
	if !ok {
		t.Fatal("frame not returned after both subpages")
	}
	for row := 0; row < 2; row++ {
		for col := 0; col < 4; col++ {
			want := 10.0
			if (row+col)%2 == 1 {
				want = 20
			}
			if got := f.At(col, row); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", col, row, got, want)
			}
		}
	}
}

func TestAssembler_NotReadyDoesNotRead(t *testing.T) {
	src := &scriptedSource{ready: []bool{false, false}}
	a := NewAssembler(src, 4, 2)
	for i := 0; i < 2; i++ {
		if _, ok := a.PollFrame(); ok {
			t.Fatal("frame returned while sensor not ready")
		}
	}
	if src.reads != 0 {
		t.Errorf("reads = %d, want 0", src.reads)
	}
}

func TestAssembler_SamePageTwiceIsNotAFrame(t *testing.T) {
	src := &scriptedSource{
		pages: []int{0, 0, 1},
		data:  [][]float64{fill(4, 2, 1), fill(4, 2, 2), fill(4, 2, 3)},
	}
	a := NewAssembler(src, 4, 2)
	a.PollFrame()
	if _, ok := a.PollFrame(); ok {
		t.Fatal("two copies of subpage 0 must not make a frame")
	}
	f, ok := a.PollFrame()
	if !ok {
		t.Fatal("expected frame")
	}
	if f.At(0, 0) != 2 || f.At(1, 0) != 3 {
		t.Errorf("latest subpage data should win, got %v %v", f.At(0, 0), f.At(1, 0))
	}
}

func TestAssembler_ReadErrorRestartsFrame(t *testing.T) {
	src := &scriptedSource{
		pages: []int{0, 1, 0, 1},
		data:  [][]float64{fill(4, 2, 1), nil, fill(4, 2, 1), fill(4, 2, 2)},
		errs:  []error{nil, errors.New("nack")},
	}
	a := NewAssembler(src, 4, 2)
	a.PollFrame()
	if _, ok := a.PollFrame(); ok {
		t.Fatal("frame returned on read error")
	}
	if a.Faults() != 1 {
		t.Errorf("Faults() = %d, want 1", a.Faults())
	}
	if _, ok := a.PollFrame(); ok {
		t.Fatal("half frame from before the fault must be discarded")
	}
	if _, ok := a.PollFrame(); !ok {
		t.Fatal("expected frame after recovery")
	}
}

func TestAssembler_WrongSizeIsFault(t *testing.T) {
	src := &scriptedSource{pages: []int{0}, data: [][]float64{fill(2, 2, 1)}}
	a := NewAssembler(src, 4, 2)
	if _, ok := a.PollFrame(); ok {
		t.Fatal("frame returned for short subpage")
	}
	if a.Faults() != 1 {
		t.Errorf("Faults() = %d, want 1", a.Faults())
	}
}

func TestFrame_Limits(t *testing.T) {
	f := NewFrame(3, 1)
	copy(f.Pixels, []float64{5, -2, 9})
	lo, hi := f.Limits()
	if lo != -2 || hi != 9 {
		t.Errorf("Limits() = (%v, %v), want (-2, 9)", lo, hi)
	}
	if !f.Valid() {
		t.Error("frame should be valid")
	}
	if (Frame{Width: 2, Height: 2, Pixels: make([]float64, 3)}).Valid() {
		t.Error("mismatched frame should be invalid")
	}
}

func TestCSV(t *testing.T) {
	f := NewFrame(3, 2)
	copy(f.Pixels, []float64{0, 5, 10, 10, 5, 0})

	raw := CSV(f, nil)
	if len(raw) != 2 || raw[0] != "0,5,10" || raw[1] != "10,5,0" {
		t.Errorf("CSV(nil) = %q", raw)
	}

	scaled := CSV(f, []float64{0, 100})
	if scaled[0] != "0,50,100" {
		t.Errorf("CSV(0..100) row 0 = %q, want 0,50,100", scaled[0])
	}

	flat := NewFrame(2, 1)
	if got := CSV(flat, []float64{0, 100}); got[0] != "0,0" {
		t.Errorf("CSV(flat) = %q, want 0,0", got[0])
	}
}
