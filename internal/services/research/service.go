// -----------------------------------------------------------------------
// Research Service - combined web and video acquisition for a topic
// -----------------------------------------------------------------------

package research

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/services/ingestion"
)

// Output aggregates both acquisition branches of a research run
type Output struct {
	WebCreated   int
	VideoCreated int
	Processed    int
	Errors       []string
}

// TotalCreated returns the article count across both branches
func (o *Output) TotalCreated() int {
	return o.WebCreated + o.VideoCreated
}

// Service runs topic research: a web search branch and a video search
// branch execute concurrently and failures on one side never stop the
// other.
type Service struct {
	videoSearch interfaces.VideoSearchService
	ingestion   *ingestion.Service
	logger      arbor.ILogger
}

// NewService creates a new research service. The web branch reuses the
// ingestion service's search pipeline; only video search is a direct
// dependency here.
func NewService(
	videoSearch interfaces.VideoSearchService,
	ingestionService *ingestion.Service,
	logger arbor.ILogger,
) *Service {
	return &Service{
		videoSearch: videoSearch,
		ingestion:   ingestionService,
		logger:      logger,
	}
}

// Run acquires web and video content for the query. The progress callback
// receives combined counts across both branches as items complete.
func (s *Service) Run(ctx context.Context, query string, maxWebResults, maxVideos int, progress ingestion.ProgressFunc) (*Output, error) {
	output := &Output{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Combined progress across branches. Totals arrive as each branch
	// finishes its search, so the denominator can grow mid-run.
	var webTotal, videoTotal int
	var webProcessed, videoProcessed int
	var webCreated, videoCreated int

	notify := func() {
		if progress != nil {
			progress(webTotal+videoTotal, webProcessed+videoProcessed, webCreated+videoCreated)
		}
	}

	wg.Add(2)

	go func() {
		defer wg.Done()
		result, err := s.runWebBranch(ctx, query, maxWebResults, func(total, processed, created int) {
			mu.Lock()
			webTotal, webProcessed, webCreated = total, processed, created
			notify()
			mu.Unlock()
		})

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			output.Errors = append(output.Errors, fmt.Sprintf("web search: %v", err))
			return
		}
		output.WebCreated = result.Created
		output.Processed += result.Processed
		output.Errors = append(output.Errors, result.Errors...)
	}()

	go func() {
		defer wg.Done()
		result, err := s.runVideoBranch(ctx, query, maxVideos, func(total, processed, created int) {
			mu.Lock()
			videoTotal, videoProcessed, videoCreated = total, processed, created
			notify()
			mu.Unlock()
		})

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			output.Errors = append(output.Errors, fmt.Sprintf("video search: %v", err))
			return
		}
		output.VideoCreated = result.Created
		output.Processed += result.Processed
		output.Errors = append(output.Errors, result.Errors...)
	}()

	wg.Wait()

	// Both branches failing outright means nothing was researched
	if output.TotalCreated() == 0 && output.Processed == 0 && len(output.Errors) > 0 {
		return output, fmt.Errorf("research produced nothing: %s", output.Errors[0])
	}

	s.logger.Info().
		Str("query", query).
		Int("web_created", output.WebCreated).
		Int("video_created", output.VideoCreated).
		Int("errors", len(output.Errors)).
		Msg("Research acquisition completed")

	return output, nil
}

func (s *Service) runWebBranch(ctx context.Context, query string, maxResults int, progress ingestion.ProgressFunc) (*ingestion.Result, error) {
	result, err := s.ingestion.IngestTopic(ctx, query, maxResults, progress)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Web research branch failed")
		return nil, err
	}
	return result, nil
}

func (s *Service) runVideoBranch(ctx context.Context, query string, maxVideos int, progress ingestion.ProgressFunc) (*ingestion.Result, error) {
	videos, err := s.videoSearch.Search(ctx, query, maxVideos)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Video research branch failed")
		return nil, err
	}
	return s.ingestion.IngestVideos(ctx, videos, progress), nil
}
