// -----------------------------------------------------------------------
// WebSocket Handler - live job progress stream
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/jobs"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const defaultHeartbeat = 30 * time.Second

// WSMessage is the wire format for every frame pushed to subscribers
type WSMessage struct {
	Type      string       `json:"type"`
	JobID     string       `json:"job_id"`
	Timestamp time.Time    `json:"timestamp"`
	Data      ProgressData `json:"data"`
}

// ProgressData carries the job state snapshot inside a WSMessage
type ProgressData struct {
	Status         models.JobStatus  `json:"status"`
	Progress       int               `json:"progress"`
	TotalItems     int               `json:"total_items"`
	ProcessedItems int               `json:"processed_items"`
	CreatedItems   int               `json:"created_items"`
	Message        string            `json:"message,omitempty"`
	Error          string            `json:"error,omitempty"`
	Result         *models.JobResult `json:"result,omitempty"`
}

// WebSocketHandler upgrades connections on /ws/jobs[/{id}] and relays job
// progress events from the event bus into the connection registry.
type WebSocketHandler struct {
	registry  *Registry
	jobs      interfaces.JobStorage
	logger    arbor.ILogger
	heartbeat time.Duration
	throttle  time.Duration

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter // per-job progress throttlers
}

// NewWebSocketHandler creates the handler and subscribes it to job
// progress events
func NewWebSocketHandler(registry *Registry, jobStorage interfaces.JobStorage, events interfaces.EventService, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		registry:  registry,
		jobs:      jobStorage,
		logger:    logger,
		heartbeat: defaultHeartbeat,
		limiters:  make(map[string]*rate.Limiter),
	}

	if config != nil && config.HeartbeatInterval != "" {
		if d, err := time.ParseDuration(config.HeartbeatInterval); err == nil && d > 0 {
			h.heartbeat = d
		} else {
			logger.Warn().Str("heartbeat_interval", config.HeartbeatInterval).Msg("Invalid heartbeat interval, using default")
		}
	}
	if config != nil && config.ProgressThrottle != "" {
		if d, err := time.ParseDuration(config.ProgressThrottle); err == nil && d > 0 {
			h.throttle = d
			logger.Debug().Dur("interval", d).Msg("Progress broadcast throttling enabled")
		} else {
			logger.Warn().Str("progress_throttle", config.ProgressThrottle).Msg("Invalid progress throttle, throttling disabled")
		}
	}

	if events != nil {
		if err := events.Subscribe(interfaces.EventJobProgress, h.onProgress); err != nil {
			logger.Error().Err(err).Msg("Failed to subscribe to job progress events")
		}
	}

	return h
}

// onProgress relays a tracker progress event to subscribers. Throttled
// intermediate updates are dropped; status changes always go out.
func (h *WebSocketHandler) onProgress(ctx context.Context, event interfaces.Event) error {
	progress, ok := event.Payload.(*jobs.ProgressEvent)
	if !ok {
		h.logger.Warn().Msg("Unexpected job progress payload type")
		return nil
	}

	if h.throttle > 0 && progress.Status == models.JobStatusRunning && progress.Message == "" {
		if !h.limiter(progress.JobID).Allow() {
			return nil
		}
	}
	if progress.Status.IsTerminal() {
		h.dropLimiter(progress.JobID)
	}

	data, err := json.Marshal(WSMessage{
		Type:      "job_progress",
		JobID:     progress.JobID,
		Timestamp: progress.Timestamp,
		Data: ProgressData{
			Status:         progress.Status,
			Progress:       progress.Progress,
			TotalItems:     progress.TotalItems,
			ProcessedItems: progress.ProcessedItems,
			CreatedItems:   progress.CreatedItems,
			Message:        progress.Message,
			Error:          progress.ErrorMessage,
			Result:         progress.Result,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal progress message")
		return nil
	}

	h.registry.SendToJob(progress.JobID, data)
	return nil
}

func (h *WebSocketHandler) limiter(jobID string) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()
	l, ok := h.limiters[jobID]
	if !ok {
		l = rate.NewLimiter(rate.Every(h.throttle), 1)
		h.limiters[jobID] = l
	}
	return l
}

func (h *WebSocketHandler) dropLimiter(jobID string) {
	h.limiterMu.Lock()
	delete(h.limiters, jobID)
	h.limiterMu.Unlock()
}

// HandleWebSocket upgrades the connection and streams job progress until
// the client disconnects. /ws/jobs watches every job, /ws/jobs/{id} only
// the one.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := PathID(r.URL.Path, "/ws/jobs")

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	conn := &wsConn{conn: raw}

	h.registry.Register(conn, jobID)
	defer func() {
		h.registry.Unregister(conn)
		raw.Close()
	}()

	h.sendSnapshot(r.Context(), conn, jobID)

	done := make(chan struct{})
	defer close(done)
	go h.heartbeatLoop(conn, done)

	raw.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	})

	for {
		messageType, payload, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(2 * h.heartbeat))

		if messageType != websocket.TextMessage {
			continue
		}
		switch strings.TrimSpace(string(payload)) {
		case "ping":
			if err := conn.write([]byte("pong")); err != nil {
				return
			}
		case "close":
			return
		}
	}
}

// sendSnapshot pushes the current job state so subscribers do not have to
// wait for the next mutation. The global stream gets every active job.
func (h *WebSocketHandler) sendSnapshot(ctx context.Context, conn *wsConn, jobID string) {
	if jobID != "" {
		job, err := h.jobs.GetJob(ctx, jobID)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", jobID).Msg("No job for WebSocket snapshot")
			return
		}
		h.sendJobSnapshot(conn, job)
		return
	}

	for _, status := range []models.JobStatus{models.JobStatusRunning, models.JobStatusPending} {
		active, err := h.jobs.ListJobs(ctx, &interfaces.JobListOptions{Status: status})
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to list active jobs for snapshot")
			return
		}
		for _, job := range active {
			h.sendJobSnapshot(conn, job)
		}
	}
}

func (h *WebSocketHandler) sendJobSnapshot(conn *wsConn, job *models.Job) {
	data, err := json.Marshal(WSMessage{
		Type:      "job_snapshot",
		JobID:     job.ID,
		Timestamp: time.Now().UTC(),
		Data: ProgressData{
			Status:         job.Status,
			Progress:       job.Progress,
			TotalItems:     job.TotalItems,
			ProcessedItems: job.ProcessedItems,
			CreatedItems:   job.CreatedItems,
			Error:          job.ErrorMessage,
			Result:         job.Result,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal job snapshot")
		return
	}
	if err := conn.write(data); err != nil {
		h.logger.Debug().Err(err).Str("job_id", job.ID).Msg("Failed to send job snapshot")
	}
}

// heartbeatLoop keeps idle connections alive. The heartbeat goes out as a
// JSON text frame so browser clients can observe it; a protocol ping rides
// along so the pong handler refreshes the read deadline and half-open
// connections are detected within two intervals.
func (h *WebSocketHandler) heartbeatLoop(conn *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.write([]byte(`{"type":"heartbeat"}`)); err != nil {
				return
			}
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// StatsHandler reports connection counts
// GET /api/ws/stats
func (h *WebSocketHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	total, perJob := h.registry.Counts()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_connections": total,
		"job_subscriptions": perJob,
	})
}
