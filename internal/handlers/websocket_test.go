package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/events"
	"github.com/ternarybob/curio/internal/services/jobs"
	"github.com/ternarybob/curio/internal/storage/badger"
)

type wsFixture struct {
	storage  interfaces.JobStorage
	events   interfaces.EventService
	registry *Registry
	handler  *WebSocketHandler
	tracker  *jobs.Tracker
	server   *httptest.Server
	wsURL    string
}

func newWSFixture(t *testing.T, config *common.WebSocketConfig) *wsFixture {
	t.Helper()
	logger := arbor.NewLogger()

	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage := badger.NewJobStorage(db, logger)
	eventService := events.NewService(logger)
	t.Cleanup(func() { eventService.Close() })

	registry := NewRegistry(logger)
	t.Cleanup(func() { registry.Close() })

	handler := NewWebSocketHandler(registry, storage, eventService, config, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/jobs", handler.HandleWebSocket)
	mux.HandleFunc("/ws/jobs/", handler.HandleWebSocket)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &wsFixture{
		storage:  storage,
		events:   eventService,
		registry: registry,
		handler:  handler,
		tracker:  jobs.NewTracker(storage, eventService, logger),
		server:   server,
		wsURL:    "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL+path, nil)
	if err != nil {
		t.Fatalf("Dial %s failed: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *wsFixture) createJob(t *testing.T) *models.Job {
	t.Helper()
	job, err := models.NewJob(models.JobTypeTopicIngestion, models.JobParameters{
		TopicIngestion: &models.TopicIngestionParams{Query: "go concurrency", MaxResults: 3},
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := f.storage.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	return job
}

func readMessage(t *testing.T, conn *websocket.Conn) (WSMessage, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return WSMessage{}, false
	}
	return msg, true
}

func TestWebSocketSnapshotOnSubscribe(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{})
	job := fixture.createJob(t)

	conn := fixture.dial(t, "/ws/jobs/"+job.ID)

	msg, ok := readMessage(t, conn)
	if !ok {
		t.Fatal("Expected snapshot frame on subscribe")
	}
	if msg.Type != "job_snapshot" || msg.JobID != job.ID {
		t.Errorf("Unexpected snapshot frame: %+v", msg)
	}
	if msg.Data.Status != models.JobStatusPending {
		t.Errorf("Snapshot status = %s, want pending", msg.Data.Status)
	}
}

func TestWebSocketStreamsProgress(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{})
	job := fixture.createJob(t)

	scoped := fixture.dial(t, "/ws/jobs/"+job.ID)
	watcher := fixture.dial(t, "/ws/jobs")

	// Drain the initial snapshots
	if _, ok := readMessage(t, scoped); !ok {
		t.Fatal("Missing scoped snapshot")
	}
	if _, ok := readMessage(t, watcher); !ok {
		t.Fatal("Missing watcher snapshot")
	}

	ctx := context.Background()
	fixture.tracker.MarkRunning(ctx, job.ID)
	fixture.tracker.SetProgress(ctx, job.ID, 40, "Fetching articles")

	for name, conn := range map[string]*websocket.Conn{"scoped": scoped, "watcher": watcher} {
		running, ok := readMessage(t, conn)
		if !ok || running.Type != "job_progress" || running.Data.Status != models.JobStatusRunning {
			t.Fatalf("%s: expected running frame, got %+v ok=%v", name, running, ok)
		}
		progress, ok := readMessage(t, conn)
		if !ok || progress.Data.Progress != 40 || progress.Data.Message != "Fetching articles" {
			t.Fatalf("%s: expected progress frame, got %+v ok=%v", name, progress, ok)
		}
	}
}

func TestWebSocketScopedIsolation(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{})
	jobA := fixture.createJob(t)
	jobB := fixture.createJob(t)

	conn := fixture.dial(t, "/ws/jobs/"+jobA.ID)
	if _, ok := readMessage(t, conn); !ok {
		t.Fatal("Missing snapshot")
	}

	fixture.tracker.MarkRunning(context.Background(), jobB.ID)

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Errorf("Subscriber of job %s received frame for job %s: %+v", jobA.ID, msg.JobID, msg)
	}
}

func TestWebSocketPingAndClose(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{})
	job := fixture.createJob(t)

	conn := fixture.dial(t, "/ws/jobs/"+job.ID)
	if _, ok := readMessage(t, conn); !ok {
		t.Fatal("Missing snapshot")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "expected a reply to ping")
	assert.Equal(t, "pong", string(data))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("close")); err != nil {
		t.Fatalf("Failed to send close: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected server to close the connection")
	}

	// Registry should release the connection
	deadline := time.Now().Add(2 * time.Second)
	for {
		total, _ := fixture.registry.Counts()
		if total == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Connection still registered after close, total=%d", total)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketIdleHeartbeat(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{HeartbeatInterval: "100ms"})
	job := fixture.createJob(t)

	conn := fixture.dial(t, "/ws/jobs/"+job.ID)
	if _, ok := readMessage(t, conn); !ok {
		t.Fatal("Missing snapshot")
	}

	// No job activity, so the next text frame must be the heartbeat
	msg, ok := readMessage(t, conn)
	require.True(t, ok, "expected heartbeat frame on idle connection")
	assert.Equal(t, "heartbeat", msg.Type)
	assert.Empty(t, msg.JobID)
}

func TestWebSocketProgressThrottling(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{ProgressThrottle: "1h"})
	job := fixture.createJob(t)

	conn := fixture.dial(t, "/ws/jobs/"+job.ID)
	if _, ok := readMessage(t, conn); !ok {
		t.Fatal("Missing snapshot")
	}

	ctx := context.Background()
	fixture.tracker.MarkRunning(ctx, job.ID)

	// First frame passes (status change carries a message-free running
	// update that consumes the limiter token)
	if msg, ok := readMessage(t, conn); !ok || msg.Data.Status != models.JobStatusRunning {
		t.Fatalf("Expected running frame, got %+v ok=%v", msg, ok)
	}

	// Message-free progress updates are throttled away
	fixture.tracker.Apply(ctx, job.ID, jobs.Update{Progress: intPtr(10)})
	fixture.tracker.Apply(ctx, job.ID, jobs.Update{Progress: intPtr(20)})

	// Terminal frames always go out
	fixture.tracker.MarkCompleted(ctx, job.ID, &models.JobResult{
		Ingestion: &models.IngestionResult{Success: true, ArticlesCreated: 1},
	}, "Created 1 articles")

	final, ok := readMessage(t, conn)
	require.True(t, ok, "expected terminal frame after throttled updates")
	assert.Equal(t, models.JobStatusCompleted, final.Data.Status)
	require.NotNil(t, final.Data.Result, "terminal frame missing result payload")
	assert.NotNil(t, final.Data.Result.Ingestion)
}

func TestWebSocketStatsHandler(t *testing.T) {
	fixture := newWSFixture(t, &common.WebSocketConfig{})
	job := fixture.createJob(t)

	conn := fixture.dial(t, "/ws/jobs/"+job.ID)
	if _, ok := readMessage(t, conn); !ok {
		t.Fatal("Missing snapshot")
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/ws/stats", nil)
	fixture.handler.StatsHandler(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Stats returned %d", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "\"total_connections\":1") {
		t.Errorf("Unexpected stats body: %s", body)
	}
}

func intPtr(v int) *int { return &v }
