// -----------------------------------------------------------------------
// Ingestion Service - content acquisition pipelines
// -----------------------------------------------------------------------

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
)

// Service acquires content from web search, RSS/Atom feeds and YouTube,
// enriches it and persists articles. Failures are isolated per item: one
// bad page never aborts the rest of a run.
type Service struct {
	articles    interfaces.ArticleStorage
	webSearch   interfaces.WebSearchService
	fetcher     interfaces.ContentFetcher
	transcripts interfaces.TranscriptService
	summarizer  interfaces.SummaryService
	events      interfaces.EventService
	config      *common.IngestionConfig
	logger      arbor.ILogger
	client      *http.Client
}

// NewService creates a new ingestion service
func NewService(
	articles interfaces.ArticleStorage,
	webSearch interfaces.WebSearchService,
	fetcher interfaces.ContentFetcher,
	transcripts interfaces.TranscriptService,
	summarizer interfaces.SummaryService,
	events interfaces.EventService,
	config *common.IngestionConfig,
	logger arbor.ILogger,
) *Service {
	timeout, err := time.ParseDuration(config.RequestTimeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	return &Service{
		articles:    articles,
		webSearch:   webSearch,
		fetcher:     fetcher,
		transcripts: transcripts,
		summarizer:  summarizer,
		events:      events,
		config:      config,
		logger:      logger,
		client:      &http.Client{Timeout: timeout},
	}
}

// isDuplicate reports whether an article with the canonical URL exists
func (s *Service) isDuplicate(ctx context.Context, url string) (bool, error) {
	_, err := s.articles.GetArticleByURL(ctx, url)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// persistArticle enriches and saves a new article, then publishes the
// article_created event
func (s *Service) persistArticle(ctx context.Context, article *models.Article) error {
	summary, err := s.summarizer.Summarize(ctx, article.Title, article.Content)
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}
	article.Summary = &models.Summary{
		ExecutiveSummary: summary.ExecutiveSummary,
		FullSummary:      summary.FullSummary,
		KeyPoints:        summary.KeyPoints,
		Categories:       summary.Categories,
	}

	if err := s.articles.SaveArticle(ctx, article); err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}

	if s.events != nil {
		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventArticleCreated,
			Payload: map[string]interface{}{
				"article_id":  article.ID,
				"title":       article.Title,
				"source_type": string(article.SourceType),
			},
		})
	}

	s.logger.Info().
		Str("article_id", article.ID).
		Str("url", article.URL).
		Str("source_type", string(article.SourceType)).
		Msg("Article created")

	return nil
}

func notifyProgress(progress ProgressFunc, total, processed, created int) {
	if progress != nil {
		progress(total, processed, created)
	}
}
