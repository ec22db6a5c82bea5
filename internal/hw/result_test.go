package hw

import "testing"

func TestResult_String(t *testing.T) {
	cases := map[Result]string{
		Ok:            "ok",
		OutOfRange:    "out of range",
		HardwareFault: "hardware fault",
		Result(42):    "unknown",
	}
	for r, want := range cases {
		if got := r.String(); got != want {
			t.Errorf("Result(%d).String() = %q, want %q", int(r), got, want)
		}
	}
}

func TestResult_Failed(t *testing.T) {
	if Ok.Failed() {
		t.Error("Ok should not be a failure")
	}
	if !OutOfRange.Failed() || !HardwareFault.Failed() {
		t.Error("OutOfRange and HardwareFault should be failures")
	}
}
