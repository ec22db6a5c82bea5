package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/PanTurret/internal/debug"
)

const (
	// writeWait is how long a write may take
	writeWait = 5 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 30 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds client messages, which are ignored
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// HandleTelemetryWS streams snapshots as JSON text messages, one per publish.
func (h *Handlers) HandleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Errorf("telemetry websocket upgrade: %v", err)
		return
	}
	c := &wsClient{conn: conn, telemetry: h.Telemetry, done: make(chan struct{})}
	go c.writePump()
	c.readPump()
}

type wsClient struct {
	conn      *websocket.Conn
	telemetry *Telemetry
	done      chan struct{}
}

// readPump only detects disconnection and handles pongs.
func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *wsClient) writePump() {
	wake, unsub := c.telemetry.Subscribe()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		unsub()
		ticker.Stop()
		c.conn.Close()
	}()

	var sent uint64
	send := func() bool {
		snap, seq := c.telemetry.Latest()
		if seq == 0 || seq == sent {
			return true
		}
		sent = seq
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteJSON(snap) == nil
	}
	if !send() {
		return
	}

	for {
		select {
		case <-wake:
			if !send() {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
