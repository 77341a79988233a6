package ingestion

import (
	"context"
	"fmt"

	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/models"
)

// IngestTopic searches the web for the query and ingests each result.
// Per-item failures are recorded and the walk continues.
func (s *Service) IngestTopic(ctx context.Context, query string, maxResults int, progress ProgressFunc) (*Result, error) {
	results, err := s.webSearch.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	s.logger.Info().
		Str("query", query).
		Int("candidates", len(results)).
		Msg("Topic ingestion started")

	return s.ingestSearchResults(ctx, results, models.SourceTypeWebSearch, query, progress), nil
}

// ingestSearchResults walks search hits, ingesting each page. Shared by
// topic ingestion and the web branch of research.
func (s *Service) ingestSearchResults(ctx context.Context, results []models.SearchResult, sourceType models.SourceType, sourceName string, progress ProgressFunc) *Result {
	result := &Result{}
	total := len(results)

	for _, hit := range results {
		if ctx.Err() != nil {
			result.addError(fmt.Sprintf("ingestion cancelled: %v", ctx.Err()))
			break
		}

		created, err := s.ingestPage(ctx, hit.URL, hit.Title, sourceType, sourceName)
		result.Processed++
		if err != nil {
			result.addError(fmt.Sprintf("%s: %v", hit.URL, err))
			s.logger.Warn().Err(err).Str("url", hit.URL).Msg("Item ingestion failed")
		} else if created {
			result.Created++
		} else {
			result.Skipped++
		}
		notifyProgress(progress, total, result.Processed, result.Created)
	}

	return result
}

// ingestPage fetches, enriches and persists a single web page. Returns
// false with nil error when the URL is already known.
func (s *Service) ingestPage(ctx context.Context, rawURL, fallbackTitle string, sourceType models.SourceType, sourceName string) (bool, error) {
	canonical, err := common.CanonicalURL(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	duplicate, err := s.isDuplicate(ctx, canonical)
	if err != nil {
		return false, err
	}
	if duplicate {
		s.logger.Debug().Str("url", canonical).Msg("Skipping duplicate article")
		return false, nil
	}

	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return false, err
	}

	if len(page.Content) < s.config.MinWebContent {
		return false, fmt.Errorf("content too short (%d chars, floor %d)", len(page.Content), s.config.MinWebContent)
	}

	title := page.Title
	if title == "" {
		title = fallbackTitle
	}
	if title == "" {
		title = canonical
	}

	article := models.NewArticle(title, canonical, sourceType, sourceName, page.Content)
	if err := s.persistArticle(ctx, article); err != nil {
		return false, err
	}
	return true, nil
}
