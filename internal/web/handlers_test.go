package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/logic/turret"
)

func newTestHandlers(press PressFunc, restart RestartFunc) *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	return NewHandlers(NewLogBroadcaster(16), NewTelemetry(), press, restart, ConfigViewFrom(config.Default()), staticFS)
}

func counter() (PressFunc, *atomic.Int32) {
	var n atomic.Int32
	return func() { n.Add(1) }, &n
}

func idle() Snapshot {
	return Snapshot{Tick: 100, Timing: "WaitTrigger", Turret: turret.Snapshot{State: "WaitStart"}}
}

// ---------- HandleTrigger ----------

func TestHandleTrigger(t *testing.T) {
	press, n := counter()
	h := newTestHandlers(press, nil)
	h.Telemetry.Publish(idle())

	w := httptest.NewRecorder()
	h.HandleTrigger(w, httptest.NewRequest(http.MethodPost, "/trigger", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "pressed" || n.Load() != 1 {
		t.Errorf("response %v, presses %d", resp, n.Load())
	}
}

func TestHandleTrigger_Refused(t *testing.T) {
	tests := []struct {
		name   string
		method string
		nilFn  bool
		timing string
		want   int
	}{
		{"get", http.MethodGet, false, "WaitTrigger", http.StatusMethodNotAllowed},
		{"not configured", http.MethodPost, true, "WaitTrigger", http.StatusServiceUnavailable},
		{"engagement running", http.MethodPost, false, "ActiveWindow", http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			press, n := counter()
			if tc.nilFn {
				press = nil
			}
			h := newTestHandlers(press, nil)
			snap := idle()
			snap.Timing = tc.timing
			h.Telemetry.Publish(snap)

			w := httptest.NewRecorder()
			h.HandleTrigger(w, httptest.NewRequest(tc.method, "/trigger", nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
			if n.Load() != 0 {
				t.Error("refused request pressed the trigger")
			}
		})
	}
}

func TestHandleTrigger_RateLimiting(t *testing.T) {
	press, n := counter()
	h := newTestHandlers(press, nil)

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		h.HandleTrigger(w, httptest.NewRequest(http.MethodPost, "/trigger", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusAccepted || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [202 429]", codes)
	}
	if n.Load() != 1 {
		t.Errorf("presses = %d, want 1", n.Load())
	}
}

// ---------- HandleRestart ----------

func TestHandleRestart(t *testing.T) {
	restart, n := counter()
	h := newTestHandlers(nil, RestartFunc(restart))
	w := httptest.NewRecorder()
	h.HandleRestart(w, httptest.NewRequest(http.MethodPost, "/restart", nil))
	if w.Code != http.StatusAccepted || n.Load() != 1 {
		t.Errorf("status = %d, restarts = %d", w.Code, n.Load())
	}

	h = newTestHandlers(nil, nil)
	w = httptest.NewRecorder()
	h.HandleRestart(w, httptest.NewRequest(http.MethodPost, "/restart", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ---------- HandleState ----------

func TestHandleState(t *testing.T) {
	h := newTestHandlers(nil, nil)

	w := httptest.NewRecorder()
	h.HandleState(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before publish: status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	snap := idle()
	snap.RunID = "abc"
	snap.Turret.Shots = 3
	h.Telemetry.Publish(snap)

	w = httptest.NewRecorder()
	h.HandleState(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got Snapshot
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "abc" || got.Turret.Shots != 3 || got.Timing != "WaitTrigger" {
		t.Errorf("snapshot = %+v", got)
	}
}

// ---------- HandleConfig ----------

func TestHandleConfig(t *testing.T) {
	h := newTestHandlers(nil, nil)
	w := httptest.NewRecorder()
	h.HandleConfig(w, httptest.NewRequest(http.MethodGet, "/config", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var cv ConfigView
	if err := json.NewDecoder(w.Body).Decode(&cv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cv.WaitWindowMs != 5000 || cv.ActiveWindowMs != 10000 || cv.HeadingCounts != 80000 || !cv.Mock {
		t.Errorf("config view = %+v", cv)
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(nil, nil)
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestEmbeddedIndex(t *testing.T) {
	sub, err := StaticFS()
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandlers(NewLogBroadcaster(0), NewTelemetry(), nil, nil, ConfigView{}, sub)
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/telemetry/ws") {
		t.Errorf("embedded index: status %d", w.Code)
	}
}
