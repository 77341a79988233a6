// -----------------------------------------------------------------------
// Ingest Handler - synchronous feed and video ingestion API
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/ingestion"
)

// FeedIngestRequest is the payload for POST /api/ingest/rss
type FeedIngestRequest struct {
	FeedURL     string `json:"feed_url" validate:"required,url"`
	SourceName  string `json:"source_name"`
	MaxArticles int    `json:"max_articles" validate:"omitempty,min=1,max=100"`
}

// VideoIngestRequest is the payload for POST /api/ingest/youtube
type VideoIngestRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// IngestHandler exposes the synchronous ingestion endpoints. These run in
// the request goroutine and return the full result, unlike the job API.
type IngestHandler struct {
	ingestion *ingestion.Service
	logger    arbor.ILogger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestionService *ingestion.Service, logger arbor.ILogger) *IngestHandler {
	return &IngestHandler{
		ingestion: ingestionService,
		logger:    logger,
	}
}

// IngestFeedHandler ingests an RSS/Atom feed synchronously
// POST /api/ingest/rss
func (h *IngestHandler) IngestFeedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req FeedIngestRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.ingestion.IngestFeed(r.Context(), req.FeedURL, req.SourceName, req.MaxArticles, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("feed_url", req.FeedURL).Msg("Feed ingestion failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// IngestVideoHandler ingests a single YouTube video synchronously
// POST /api/ingest/youtube
func (h *IngestHandler) IngestVideoHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req VideoIngestRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.ingestion.IngestVideo(r.Context(), models.VideoResult{URL: req.URL})
	if err != nil {
		h.logger.Error().Err(err).Str("url", req.URL).Msg("Video ingestion failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"url":     req.URL,
		"created": created,
	})
}
