package harness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cjeanneret/PanTurret/internal/debug"
)

// Point is one parsed CSV data point.
type Point struct {
	X float64
	Y float64
}

// ParseLine extracts a point from a streamed line. Only the first two comma
// separated fields are used and anything after # in a field is a comment.
// Lines without two numbers are not data.
func ParseLine(line string) (Point, bool) {
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 2 {
		return Point{}, false
	}
	var v [2]float64
	for i := 0; i < 2; i++ {
		f, _, _ := strings.Cut(fields[i], "#")
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Point{}, false
		}
		v[i] = n
	}
	return Point{X: v[0], Y: v[1]}, true
}

// Host is the harness end of the link.
type Host struct {
	r *bufio.Reader
	w io.Writer
}

// NewHost creates the host end over a serial link.
func NewHost(r io.Reader, w io.Writer) *Host {
	return &Host{r: bufio.NewReader(r), w: w}
}

func (h *Host) readLine() (string, error) {
	line, err := h.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", io.ErrUnexpectedEOF
		}
		if line == "" {
			return "", err
		}
	}
	return strings.TrimSpace(line), nil
}

// Restart asks the device for a soft restart.
func (h *Host) Restart() error {
	_, err := h.w.Write(RestartSequence)
	return err
}

// Answer waits for the next Input prompt, sends value and waits for the
// verdict. A rejected value returns ErrInvalid; the device then prompts
// again, so the next Answer call retries.
func (h *Host) Answer(value string) error {
	for {
		line, err := h.readLine()
		if err != nil {
			return fmt.Errorf("wait for prompt: %w", err)
		}
		if line == TokenInput {
			break
		}
		debug.Trace("harness: skipped %q", line)
	}
	if _, err := io.WriteString(h.w, value+lineEnd); err != nil {
		return err
	}
	for {
		line, err := h.readLine()
		if err != nil {
			return fmt.Errorf("wait for verdict: %w", err)
		}
		switch line {
		case TokenValid:
			return nil
		case TokenInvalid:
			return fmt.Errorf("%w: %q", ErrInvalid, value)
		}
	}
}

// Collect reads one data stream up to End.
func (h *Host) Collect() ([]Point, error) {
	var pts []Point
	for {
		line, err := h.readLine()
		if err != nil {
			return pts, fmt.Errorf("collect: %w", err)
		}
		if line == TokenEnd {
			return pts, nil
		}
		if p, ok := ParseLine(line); ok {
			pts = append(pts, p)
		}
	}
}
