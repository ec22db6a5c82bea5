package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/logic/supervisor"
)

// pressInterval rate-limits software trigger presses.
const pressInterval = time.Second

// PressFunc presses the software trigger.
type PressFunc func()

// RestartFunc requests a soft restart of the tasks.
type RestartFunc func()

// ConfigView is the engagement configuration shown by the UI.
type ConfigView struct {
	WaitWindowMs   int     `json:"wait_window_ms"`
	ActiveWindowMs int     `json:"active_window_ms"`
	CooldownMs     int     `json:"cooldown_ms"`
	ReturnWindowMs int     `json:"return_window_ms"`
	Refire         int     `json:"refire"`
	HeadingCounts  int64   `json:"heading_counts"`
	HomeCounts     int64   `json:"home_counts"`
	FOVDeg         float64 `json:"fov_deg"`
	Origin         string  `json:"origin"`
	Mock           bool    `json:"mock"`
}

// ConfigViewFrom extracts the UI view of a configuration.
func ConfigViewFrom(cfg *config.Config) ConfigView {
	return ConfigView{
		WaitWindowMs:   cfg.Timing.WaitWindowMs,
		ActiveWindowMs: cfg.Timing.ActiveWindowMs,
		CooldownMs:     cfg.Timing.CooldownMs,
		ReturnWindowMs: cfg.Timing.ReturnWindowMs,
		Refire:         cfg.Fire.Refire,
		HeadingCounts:  cfg.Aim.HeadingCounts,
		HomeCounts:     cfg.Aim.HomeCounts,
		FOVDeg:         cfg.Thermal.FOVDeg,
		Origin:         cfg.Thermal.Origin,
		Mock:           cfg.Defaults.MockGPIO,
	}
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Logs      *LogBroadcaster
	Telemetry *Telemetry
	Press     PressFunc
	Restart   RestartFunc
	Config    ConfigView
	staticFS  fs.FS

	mu        sync.Mutex
	lastPress time.Time
}

// NewHandlers creates handlers. A nil press or restart makes the matching
// endpoint answer 503 Service Unavailable.
func NewHandlers(logs *LogBroadcaster, telemetry *Telemetry, press PressFunc, restart RestartFunc, cfg ConfigView, staticFS fs.FS) *Handlers {
	return &Handlers{
		Logs:      logs,
		Telemetry: telemetry,
		Press:     press,
		Restart:   restart,
		Config:    cfg,
		staticFS:  staticFS,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleConfig returns the engagement configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Config)
}

// HandleState returns the latest telemetry snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	snap, seq := h.Telemetry.Latest()
	if seq == 0 {
		http.Error(w, "no telemetry yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleTrigger handles POST /trigger, a software trigger press. Presses
// are refused while an engagement is running.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Press == nil {
		http.Error(w, "software trigger not configured", http.StatusServiceUnavailable)
		return
	}
	if snap, seq := h.Telemetry.Latest(); seq > 0 && snap.Timing != supervisor.WaitTrigger.String() {
		http.Error(w, "engagement in progress", http.StatusConflict)
		return
	}

	h.mu.Lock()
	if time.Since(h.lastPress) < pressInterval {
		h.mu.Unlock()
		http.Error(w, "too many presses", http.StatusTooManyRequests)
		return
	}
	h.lastPress = time.Now()
	h.mu.Unlock()

	h.Press()
	debug.Live("web: software trigger pressed from %s", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pressed"})
}

// HandleRestart handles POST /restart, a soft restart of the tasks.
func (h *Handlers) HandleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Restart == nil {
		http.Error(w, "restart not configured", http.StatusServiceUnavailable)
		return
	}
	h.Restart()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

// HandleLogStream handles GET /logs/stream for SSE.
func (h *Handlers) HandleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Logs.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
