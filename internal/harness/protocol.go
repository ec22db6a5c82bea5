// Package harness implements the line-based serial protocol spoken between
// the turret and a host harness. The device prints Input to request a
// number, answers Valid or Invalid, then streams time,value CSV lines
// closed by End. The host can request a soft restart at any time by sending
// the control bytes 0x02 0x03 0x04.
package harness

import (
	"errors"
	"io"
)

// Protocol tokens, one per line.
const (
	TokenInput   = "Input"
	TokenValid   = "Valid"
	TokenInvalid = "Invalid"
	TokenEnd     = "End"
)

const lineEnd = "\r\n"

// RestartSequence requests a device soft restart.
var RestartSequence = []byte{0x02, 0x03, 0x04}

var (
	// ErrRestart is returned by RestartWatcher.Read when the restart
	// sequence was received.
	ErrRestart = errors.New("harness: restart requested")
	// ErrAborted is returned by session operations interrupted by a restart.
	ErrAborted = errors.New("harness: session aborted")
	// ErrInvalid is returned by the host when the device rejected a value.
	ErrInvalid = errors.New("harness: value rejected by device")
)

// RestartWatcher passes protocol text through and reports the restart
// sequence as ErrRestart. Other C0 control bytes never occur in protocol
// text and are dropped. Bytes following the sequence are kept for the next
// Read.
type RestartWatcher struct {
	r        io.Reader
	matched  int
	pending  []byte
	err      error
	restarts int
}

func NewRestartWatcher(r io.Reader) *RestartWatcher {
	return &RestartWatcher{r: r}
}

func (w *RestartWatcher) Read(p []byte) (int, error) {
	var n int
	var err error
	switch {
	case len(w.pending) > 0:
		n = copy(p, w.pending)
		w.pending = w.pending[n:]
	case w.err != nil:
		err, w.err = w.err, nil
		return 0, err
	default:
		n, err = w.r.Read(p)
	}

	out := 0
	for i := 0; i < n; i++ {
		b := p[i]
		switch {
		case b == RestartSequence[w.matched]:
			w.matched++
			if w.matched < len(RestartSequence) {
				continue
			}
			w.matched = 0
			w.restarts++
			rest := append([]byte(nil), p[i+1:n]...)
			w.pending = append(rest, w.pending...)
			w.err = err
			return out, ErrRestart
		case b == RestartSequence[0]:
			w.matched = 1
		case b < 0x20 && b != '\r' && b != '\n' && b != '\t':
			w.matched = 0
		default:
			w.matched = 0
			p[out] = b
			out++
		}
	}
	return out, err
}

// Restarts returns how many restart sequences were received.
func (w *RestartWatcher) Restarts() int { return w.restarts }
