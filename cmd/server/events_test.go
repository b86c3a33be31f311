package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"storm-decay-lab/internal/logger"
)

func dialHub(t *testing.T, hub *eventHub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *eventHub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.subscribers() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.subscribers(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventHub_Publish(t *testing.T) {
	hub := newEventHub(logger.Discard().WithComponent("test"))
	conn := dialHub(t, hub)
	waitSubscribers(t, hub, 1)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	hub.Publish(CycleEvent{Type: "cycle_completed", RunID: "run-1", DataQuality: true, Time: at})
	hub.Publish(CycleEvent{Type: "cycle_failed", Error: "ingest: boom", Time: at})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first, second CycleEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second: %v", err)
	}

	if first.Type != "cycle_completed" || first.RunID != "run-1" || !first.DataQuality || !first.Time.Equal(at) {
		t.Errorf("first = %+v", first)
	}
	if second.Type != "cycle_failed" || second.Error != "ingest: boom" || second.RunID != "" {
		t.Errorf("second = %+v", second)
	}
}

func TestEventHub_ClientLeaves(t *testing.T) {
	hub := newEventHub(logger.Discard().WithComponent("test"))
	conn := dialHub(t, hub)
	waitSubscribers(t, hub, 1)

	conn.Close()
	waitSubscribers(t, hub, 0)

	// No subscribers left: must not block or panic.
	hub.Publish(CycleEvent{Type: "cycle_completed"})
}

func TestEventHub_NoSubscribers(t *testing.T) {
	hub := newEventHub(logger.Discard().WithComponent("test"))
	for i := 0; i < eventBuffer*2; i++ {
		hub.Publish(CycleEvent{Type: "cycle_completed"})
	}
	if n := hub.subscribers(); n != 0 {
		t.Errorf("subscribers = %d", n)
	}
}
