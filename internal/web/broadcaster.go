package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// LogEvent is one log line sent to SSE clients.
type LogEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// LogBroadcaster fans log lines out to SSE clients. The last few events are
// replayed to new subscribers so a page opened mid-engagement has context.
type LogBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	history []string
	keep    int
}

// NewLogBroadcaster creates a broadcaster replaying up to keep events.
func NewLogBroadcaster(keep int) *LogBroadcaster {
	return &LogBroadcaster{
		clients: make(map[chan string]struct{}),
		keep:    keep,
	}
}

// Subscribe returns a channel of JSON-encoded events and its cleanup function,
// which must be called when the client goes away.
func (b *LogBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	for _, payload := range b.history {
		select {
		case ch <- payload:
		default:
		}
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends an event to every client. Slow clients miss events
// rather than blocking the logger.
func (b *LogBroadcaster) Broadcast(level, msg string) {
	data, err := json.Marshal(LogEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keep > 0 {
		b.history = append(b.history, payload)
		if len(b.history) > b.keep {
			b.history = b.history[len(b.history)-b.keep:]
		}
	}
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Clients returns the number of subscribed clients.
func (b *LogBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// levelTags maps the logger's line tags to event levels.
var levelTags = []struct{ tag, level string }{
	{"[ERROR]", "error"},
	{"[INFO]", "info"},
	{"[LIVE]", "live"},
	{"[VERBOSE]", "verbose"},
	{"[TRACE]", "trace"},
	{"[GPIO]", "trace"},
}

// Writer returns an io.Writer for debug.SetOutput. Each written line becomes
// one event whose level is taken from the line's tag.
func (b *LogBroadcaster) Writer() *logWriter {
	return &logWriter{b: b}
}

type logWriter struct {
	b *LogBroadcaster
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		level := "info"
		for _, lt := range levelTags {
			if i := strings.Index(msg, lt.tag); i >= 0 {
				level = lt.level
				msg = strings.TrimSpace(msg[i+len(lt.tag):])
				break
			}
		}
		w.b.Broadcast(level, msg)
	}
	return len(p), nil
}
