package ticks

import (
	"math"
	"testing"
)

func TestDiff_AcrossRollover(t *testing.T) {
	cases := []struct {
		name string
		a, b Ticks
		want int32
	}{
		{"simple", 1500, 1000, 500},
		{"negative", 1000, 1500, -500},
		{"wrap forward", 10, math.MaxUint32 - 9, 20},
		{"wrap backward", math.MaxUint32 - 9, 10, -20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Diff(tc.a, tc.b); got != tc.want {
				t.Errorf("Diff(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestAdd_Wraps(t *testing.T) {
	if got := Add(math.MaxUint32, 1); got != 0 {
		t.Errorf("Add(max, 1) = %d, want 0", got)
	}
	if got := Add(0, -1); got != math.MaxUint32 {
		t.Errorf("Add(0, -1) = %d, want max", got)
	}
}

func TestElapsed(t *testing.T) {
	if Elapsed(999, 1000) {
		t.Error("999 should not have reached 1000")
	}
	if !Elapsed(1000, 1000) {
		t.Error("deadline tick itself counts as elapsed")
	}
	if !Elapsed(5, math.MaxUint32-5) {
		t.Error("deadline before rollover should be elapsed after it")
	}
}

func TestDeadline_StartExtendExpire(t *testing.T) {
	var d Deadline
	if d.Expired(1 << 20) {
		t.Fatal("zero deadline must never expire")
	}

	d.Start(math.MaxUint32-100, 200)
	if d.Expired(math.MaxUint32) {
		t.Error("expired before end")
	}
	if !d.Expired(99) {
		t.Error("should be expired at end across rollover")
	}

	d.Extend(50)
	if d.Expired(148) {
		t.Error("extended deadline expired early")
	}
	if !d.Expired(149) {
		t.Error("extended deadline should expire at previous end + 50")
	}

	d.Stop()
	if d.Armed() || d.Expired(1000) {
		t.Error("stopped deadline must be disarmed")
	}
}

func TestManual_Advance(t *testing.T) {
	c := NewManual(math.MaxUint32)
	if got := c.Advance(2); got != 1 {
		t.Errorf("Advance = %d, want 1", got)
	}
	c.Set(42)
	if c.Now() != 42 {
		t.Errorf("Now = %d, want 42", c.Now())
	}
}
