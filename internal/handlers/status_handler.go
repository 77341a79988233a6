// -----------------------------------------------------------------------
// Status Handler - health, version and application status API
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
)

// StatusHandler serves the health, version and status endpoints
type StatusHandler struct {
	jobs      interfaces.JobStorage
	articles  interfaces.ArticleStorage
	registry  *Registry
	logger    arbor.ILogger
	startedAt time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(jobs interfaces.JobStorage, articles interfaces.ArticleStorage, registry *Registry, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		jobs:      jobs,
		articles:  articles,
		registry:  registry,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// HealthHandler returns a liveness response
// GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionHandler returns build version information
// GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}

// GetStatusHandler returns application-level counters
// GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobCounts, err := h.jobs.CountJobsByStatus(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count jobs for status")
	}
	articleCount, err := h.articles.CountArticles(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count articles for status")
	}
	linkCount, err := h.articles.CountLinks(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count links for status")
	}
	connections, _ := h.registry.Counts()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "running",
		"version":        common.GetVersion(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"jobs":           jobCounts,
		"articles":       articleCount,
		"links":          linkCount,
		"ws_connections": connections,
	})
}
