package web

import (
	"sync"

	"github.com/cjeanneret/PanTurret/internal/logic/turret"
	"github.com/cjeanneret/PanTurret/internal/sched"
)

// FlagView is the state of the four engagement flags.
type FlagView struct {
	Start  bool `json:"start"`
	Stop   bool `json:"stop"`
	Return bool `json:"return"`
	Button bool `json:"button"`
}

// Snapshot is the telemetry record published after a scheduler scan.
type Snapshot struct {
	Tick        uint32            `json:"tick"`
	RunID       string            `json:"run_id,omitempty"`
	Engagements int               `json:"engagements"`
	Timing      string            `json:"timing"`
	RemainingMs int32             `json:"remaining_ms"`
	Flags       FlagView          `json:"flags"`
	Turret      turret.Snapshot   `json:"turret"`
	Tasks       []sched.TaskStats `json:"tasks,omitempty"`
}

// Telemetry holds the latest snapshot. The scheduler goroutine publishes,
// HTTP handlers and websocket clients read. Subscribers get a wakeup per
// publish and read the latest value, so a slow client skips snapshots.
type Telemetry struct {
	mu      sync.RWMutex
	latest  Snapshot
	seq     uint64
	clients map[chan struct{}]struct{}
}

func NewTelemetry() *Telemetry {
	return &Telemetry{clients: make(map[chan struct{}]struct{})}
}

// Publish stores s as the latest snapshot and wakes subscribers.
func (t *Telemetry) Publish(s Snapshot) {
	t.mu.Lock()
	t.latest = s
	t.seq++
	for ch := range t.clients {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	t.mu.Unlock()
}

// Latest returns the latest snapshot and its sequence number (0 before the
// first publish).
func (t *Telemetry) Latest() (Snapshot, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.seq
}

// Subscribe returns a wakeup channel and its cleanup function.
func (t *Telemetry) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.clients[ch] = struct{}{}
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.clients, ch)
		t.mu.Unlock()
	}
}
