// -----------------------------------------------------------------------
// Embedding Handler - embedding generation and similarity link admin API
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/services/embeddings"
)

// EmbeddingHandler triggers best-effort embedding maintenance. The work
// detaches from the request; results land in the logs and stats endpoint.
type EmbeddingHandler struct {
	embeddings *embeddings.Service
	articles   interfaces.ArticleStorage
	logger     arbor.ILogger
}

// NewEmbeddingHandler creates a new embedding handler
func NewEmbeddingHandler(embeddingService *embeddings.Service, articles interfaces.ArticleStorage, logger arbor.ILogger) *EmbeddingHandler {
	return &EmbeddingHandler{
		embeddings: embeddingService,
		articles:   articles,
		logger:     logger,
	}
}

// GenerateAllHandler embeds every article lacking an embedding
// POST /api/embeddings/generate-all
func (h *EmbeddingHandler) GenerateAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	common.SafeGoWithContext(context.Background(), h.logger, "embeddings-generate-all", func() {
		count, err := h.embeddings.EmbedMissing(context.Background(), 0)
		if err != nil {
			h.logger.Error().Err(err).Msg("Embedding generation run failed")
			return
		}
		h.logger.Info().Int("generated", count).Msg("Embedding generation run finished")
	})

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "Embedding generation started",
	})
}

// ConnectionsHandler recomputes similarity links across all embedded
// articles
// POST /api/embeddings/connections
func (h *EmbeddingHandler) ConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	common.SafeGoWithContext(context.Background(), h.logger, "embeddings-connections", func() {
		count, err := h.embeddings.ComputeLinks(context.Background(), 0)
		if err != nil {
			h.logger.Error().Err(err).Msg("Similarity link run failed")
			return
		}
		h.logger.Info().Int("links_created", count).Msg("Similarity link run finished")
	})

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "Similarity link computation started",
	})
}

// StatsHandler reports embedding and link coverage
// GET /api/embeddings/stats
func (h *EmbeddingHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	total, err := h.articles.CountArticles(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count articles")
		WriteError(w, http.StatusInternalServerError, "Failed to collect embedding stats")
		return
	}
	embedded, err := h.articles.CountArticlesWithEmbedding(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count embedded articles")
		WriteError(w, http.StatusInternalServerError, "Failed to collect embedding stats")
		return
	}
	links, err := h.articles.CountLinks(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count links")
		WriteError(w, http.StatusInternalServerError, "Failed to collect embedding stats")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_articles":    total,
		"embedded_articles": embedded,
		"missing_embedding": total - embedded,
		"similarity_links":  links,
	})
}
