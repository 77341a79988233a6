// -----------------------------------------------------------------------
// Article Handler - curated article read API
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
)

// RelatedArticle pairs a linked article with its similarity score
type RelatedArticle struct {
	Article         *models.Article `json:"article"`
	SimilarityScore float64         `json:"similarity_score"`
	LinkType        string          `json:"link_type"`
}

// ArticleHandler exposes read and delete access to curated articles and
// their similarity links
type ArticleHandler struct {
	articles interfaces.ArticleStorage
	logger   arbor.ILogger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(articles interfaces.ArticleStorage, logger arbor.ILogger) *ArticleHandler {
	return &ArticleHandler{
		articles: articles,
		logger:   logger,
	}
}

// ListArticlesHandler returns articles newest first
// GET /api/articles?source_type=rss&limit=50&offset=0
func (h *ArticleHandler) ListArticlesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.ArticleListOptions{
		SourceType: models.SourceType(r.URL.Query().Get("source_type")),
		Limit:      50,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			opts.Offset = offset
		}
	}

	list, err := h.articles.ListArticles(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list articles")
		WriteError(w, http.StatusInternalServerError, "Failed to list articles")
		return
	}

	total, err := h.articles.CountArticles(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count articles")
		total = len(list)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"articles":    list,
		"total_count": total,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// GetArticleHandler returns a single article by id
// GET /api/articles/{id}
func (h *ArticleHandler) GetArticleHandler(w http.ResponseWriter, r *http.Request) {
	article, ok := h.loadArticle(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, article)
}

// GetRelatedHandler returns articles linked to the given one, strongest
// similarity first
// GET /api/articles/{id}/related
func (h *ArticleHandler) GetRelatedHandler(w http.ResponseWriter, r *http.Request) {
	article, ok := h.loadArticle(w, r)
	if !ok {
		return
	}

	links, err := h.articles.ListLinksForArticle(r.Context(), article.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("article_id", article.ID).Msg("Failed to list article links")
		WriteError(w, http.StatusInternalServerError, "Failed to list related articles")
		return
	}

	related := make([]RelatedArticle, 0, len(links))
	for _, link := range links {
		otherID := link.TargetID
		if otherID == article.ID {
			otherID = link.SourceID
		}
		other, err := h.articles.GetArticle(r.Context(), otherID)
		if err != nil {
			// Link survived its endpoint, skip it
			h.logger.Warn().Err(err).Str("article_id", otherID).Msg("Linked article missing")
			continue
		}
		related = append(related, RelatedArticle{
			Article:         other,
			SimilarityScore: link.SimilarityScore,
			LinkType:        link.LinkType,
		})
	}

	sort.Slice(related, func(i, j int) bool {
		return related[i].SimilarityScore > related[j].SimilarityScore
	})

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"article_id": article.ID,
		"related":    related,
		"count":      len(related),
	})
}

// DeleteArticleHandler removes an article; the storage layer cascades the
// delete to its similarity links
// DELETE /api/articles/{id}
func (h *ArticleHandler) DeleteArticleHandler(w http.ResponseWriter, r *http.Request) {
	articleID := PathID(r.URL.Path, "/api/articles")
	if articleID == "" {
		WriteError(w, http.StatusBadRequest, "Article ID is required")
		return
	}

	err := h.articles.DeleteArticle(r.Context(), articleID)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Article not found")
	case err != nil:
		h.logger.Error().Err(err).Str("article_id", articleID).Msg("Failed to delete article")
		WriteError(w, http.StatusInternalServerError, "Failed to delete article")
	default:
		h.logger.Info().Str("article_id", articleID).Msg("Article deleted")
		WriteJSON(w, http.StatusOK, map[string]string{
			"article_id": articleID,
			"message":    "Article deleted",
		})
	}
}

func (h *ArticleHandler) loadArticle(w http.ResponseWriter, r *http.Request) (*models.Article, bool) {
	articleID := PathID(r.URL.Path, "/api/articles")
	if articleID == "" || strings.Contains(articleID, "/") {
		WriteError(w, http.StatusBadRequest, "Article ID is required")
		return nil, false
	}

	article, err := h.articles.GetArticle(r.Context(), articleID)
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Article not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).Str("article_id", articleID).Msg("Failed to load article")
		WriteError(w, http.StatusInternalServerError, "Failed to load article")
		return nil, false
	}
	return article, true
}
