package web

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestTelemetryWS_StreamsSnapshots(t *testing.T) {
	h := newTestHandlers(nil, nil)
	h.Telemetry.Publish(idle())
	srv := httptest.NewServer(NewServer("", h).Mux())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/telemetry/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Snapshot
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read first snapshot: %v", err)
	}
	if first.Tick != 100 || first.Timing != "WaitTrigger" {
		t.Errorf("first snapshot = %+v", first)
	}

	next := idle()
	next.Tick = 200
	next.Timing = "WaitWindow"
	h.Telemetry.Publish(next)

	var second Snapshot
	if err := ws.ReadJSON(&second); err != nil {
		t.Fatalf("read second snapshot: %v", err)
	}
	if second.Tick != 200 || second.Timing != "WaitWindow" {
		t.Errorf("second snapshot = %+v", second)
	}
}

func TestLogStream_SSE(t *testing.T) {
	h := newTestHandlers(nil, nil)
	h.Logs.Broadcast("info", "before connect")
	srv := httptest.NewServer(NewServer("", h).Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/logs/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			if strings.HasPrefix(l, "data: ") && strings.Contains(l, "before connect") {
				return
			}
		case <-deadline:
			t.Fatal("replayed event not received")
		}
	}
}
