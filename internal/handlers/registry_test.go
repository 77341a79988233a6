package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// newConnPair upgrades a loopback connection and returns both ends
func newConnPair(t *testing.T) (*wsConn, *websocket.Conn) {
	t.Helper()

	accepted := make(chan *wsConn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		accepted <- &wsConn{conn: raw}
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	serverConn := <-accepted
	t.Cleanup(func() { serverConn.conn.Close() })
	return serverConn, client
}

func readText(t *testing.T, conn *websocket.Conn, timeout time.Duration) (string, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}
	return string(data), true
}

func TestRegistrySendToJobScoping(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	scopedConn, scopedClient := newConnPair(t)
	otherConn, otherClient := newConnPair(t)
	globalConn, globalClient := newConnPair(t)

	registry.Register(scopedConn, "job-1")
	registry.Register(otherConn, "job-2")
	registry.Register(globalConn, "")

	registry.SendToJob("job-1", []byte("progress"))

	if msg, ok := readText(t, scopedClient, time.Second); !ok || msg != "progress" {
		t.Errorf("Scoped subscriber expected message, got %q ok=%v", msg, ok)
	}
	if msg, ok := readText(t, globalClient, time.Second); !ok || msg != "progress" {
		t.Errorf("Global watcher expected message, got %q ok=%v", msg, ok)
	}
	if msg, ok := readText(t, otherClient, 200*time.Millisecond); ok {
		t.Errorf("Other-job subscriber should not receive message, got %q", msg)
	}
}

func TestRegistryBroadcast(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	scopedConn, scopedClient := newConnPair(t)
	globalConn, globalClient := newConnPair(t)
	registry.Register(scopedConn, "job-1")
	registry.Register(globalConn, "")

	registry.Broadcast([]byte("hello"))

	for name, client := range map[string]*websocket.Conn{"scoped": scopedClient, "global": globalClient} {
		if msg, ok := readText(t, client, time.Second); !ok || msg != "hello" {
			t.Errorf("%s subscriber expected broadcast, got %q ok=%v", name, msg, ok)
		}
	}
}

func TestRegistryCounts(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	connA, _ := newConnPair(t)
	connB, _ := newConnPair(t)
	connC, _ := newConnPair(t)
	registry.Register(connA, "job-1")
	registry.Register(connB, "job-1")
	registry.Register(connC, "")

	total, perJob := registry.Counts()
	if total != 3 {
		t.Errorf("Expected 3 connections, got %d", total)
	}
	if perJob["job-1"] != 2 {
		t.Errorf("Expected 2 job-1 subscribers, got %d", perJob["job-1"])
	}

	registry.Unregister(connB)
	total, perJob = registry.Counts()
	if total != 2 || perJob["job-1"] != 1 {
		t.Errorf("Counts after unregister: total=%d perJob=%v", total, perJob)
	}
}

func TestRegistryEvictsDeadConnections(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	deadConn, _ := newConnPair(t)
	aliveConn, aliveClient := newConnPair(t)
	registry.Register(deadConn, "job-1")
	registry.Register(aliveConn, "job-1")

	// Kill the server side so the next write fails
	deadConn.conn.Close()

	registry.SendToJob("job-1", []byte("still here"))

	if msg, ok := readText(t, aliveClient, time.Second); !ok || msg != "still here" {
		t.Errorf("Alive subscriber expected message, got %q ok=%v", msg, ok)
	}

	total, _ := registry.Counts()
	if total != 1 {
		t.Errorf("Dead connection should be evicted, total=%d", total)
	}
}

func TestRegistryClose(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	conn, _ := newConnPair(t)
	registry.Register(conn, "job-1")

	if err := registry.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	total, _ := registry.Counts()
	if total != 0 {
		t.Errorf("Expected empty registry after close, got %d", total)
	}

	// Registrations after close are rejected
	lateConn, _ := newConnPair(t)
	registry.Register(lateConn, "job-2")
	if total, _ := registry.Counts(); total != 0 {
		t.Errorf("Closed registry accepted a connection, total=%d", total)
	}
}
