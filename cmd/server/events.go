package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"storm-decay-lab/internal/logger"
)

const (
	eventBuffer  = 8
	writeTimeout = 10 * time.Second
)

// CycleEvent is pushed to /events subscribers after every scheduled cycle.
type CycleEvent struct {
	Type        string    `json:"type"` // cycle_completed or cycle_failed
	RunID       string    `json:"run_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	DataQuality bool      `json:"data_quality_pass"`
	Time        time.Time `json:"time"`
}

// eventHub fans cycle events out to websocket subscribers.
// Slow subscribers lose events rather than block the scheduler.
type eventHub struct {
	upgrader websocket.Upgrader
	entry    *logger.Entry

	mu      sync.Mutex
	clients map[*websocket.Conn]chan CycleEvent
}

func newEventHub(entry *logger.Entry) *eventHub {
	return &eventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		entry:   entry,
		clients: make(map[*websocket.Conn]chan CycleEvent),
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *eventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.entry.WithError(err).Warn("websocket upgrade failed")
		return
	}

	ch := make(chan CycleEvent, eventBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	// Subscribers never send; reading only detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			h.remove(conn)
			break
		}
	}
	conn.Close()
}

// Publish queues ev for every subscriber.
func (h *eventHub) Publish(ev CycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
}

func (h *eventHub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
