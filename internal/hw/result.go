// Package hw holds types shared by the hardware capability packages.
package hw

// Result is the outcome of an actuator command.
type Result int

const (
	Ok            Result = iota // command applied
	OutOfRange                  // command rejected, actuator unchanged
	HardwareFault               // driver failed, actuator state unknown
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case OutOfRange:
		return "out of range"
	case HardwareFault:
		return "hardware fault"
	default:
		return "unknown"
	}
}

// Failed reports whether the command was not applied.
func (r Result) Failed() bool { return r != Ok }
