package harness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cjeanneret/PanTurret/internal/debug"
)

// Param describes one numeric value requested from the host.
type Param struct {
	Name string
	Min  float64
	Max  float64
}

// Parse converts a received line into a value within [Min, Max].
func (p Param) Parse(line string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number: %q", p.Name, line)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: not a finite number: %q", p.Name, line)
	}
	if v < p.Min || v > p.Max {
		return 0, fmt.Errorf("%s: %g outside [%g, %g]", p.Name, v, p.Min, p.Max)
	}
	return v, nil
}

// Sample is one streamed data point.
type Sample struct {
	Ms    int64
	Value float64
}

// Device is the turret end of the link. It is long-lived: a restart aborts
// the operation in progress but keeps buffered input, so a host that answered
// early is not lost.
type Device struct {
	watch *RestartWatcher
	r     *bufio.Reader
	w     io.Writer
}

// NewDevice creates the device end over a serial link.
func NewDevice(r io.Reader, w io.Writer) *Device {
	watch := NewRestartWatcher(r)
	return &Device{watch: watch, r: bufio.NewReader(watch), w: w}
}

func (d *Device) println(s string) error {
	_, err := io.WriteString(d.w, s+lineEnd)
	return err
}

// readLine returns the next non-empty line, trimmed.
func (d *Device) readLine() (string, error) {
	for {
		line, err := d.r.ReadString('\n')
		if errors.Is(err, ErrRestart) {
			return "", ErrAborted
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Prompt requests one value. Rejected values are answered with Invalid and
// the prompt is issued again; only I/O errors and restarts end it.
func (d *Device) Prompt(p Param) (float64, error) {
	for {
		if err := d.println(TokenInput); err != nil {
			return 0, fmt.Errorf("prompt %s: %w", p.Name, err)
		}
		line, err := d.readLine()
		if err != nil {
			return 0, fmt.Errorf("prompt %s: %w", p.Name, err)
		}
		v, err := p.Parse(line)
		if err != nil {
			debug.Live("harness: %v", err)
			if err := d.println(TokenInvalid); err != nil {
				return 0, err
			}
			continue
		}
		debug.Verbose("harness: %s = %g", p.Name, v)
		return v, d.println(TokenValid)
	}
}

// Stream writes the samples as time,value lines and closes the stream with End.
func (d *Device) Stream(samples []Sample) error {
	bw := bufio.NewWriter(d.w)
	for _, s := range samples {
		fmt.Fprintf(bw, "%d,%s%s", s.Ms, strconv.FormatFloat(s.Value, 'f', -1, 64), lineEnd)
	}
	bw.WriteString(TokenEnd + lineEnd)
	return bw.Flush()
}

// Restarts returns how many restart requests the device has seen.
func (d *Device) Restarts() int { return d.watch.Restarts() }
