// -----------------------------------------------------------------------
// Summary Service - LLM enrichment for ingested articles
// -----------------------------------------------------------------------

package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/interfaces"
)

// Content truncation caps per prompt keep requests inside model context
// windows without dropping the lead of the article.
const (
	executiveContentLimit = 4000
	fullContentLimit      = 6000
	listContentLimit      = 3000

	maxKeyPoints   = 7
	maxCategories  = 3
	maxCategoryLen = 50
)

// Fallback values applied when an individual generation call fails. A
// partial enrichment is still worth persisting.
const (
	fallbackExecutiveSummary = "Summary generation failed."
	fallbackFullSummary      = "Detailed summary generation failed."
)

var (
	fallbackKeyPoints  = []string{"Summary not available"}
	fallbackCategories = []string{"Uncategorized"}
)

// Service generates article enrichment via the configured LLM provider.
// The four fields are generated concurrently and each falls back to a
// placeholder default on failure, so a single bad call never loses the
// article.
type Service struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewService creates a new summary service
func NewService(llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		llm:    llm,
		logger: logger,
	}
}

// Summarize produces the full enrichment for an article. The returned
// error is non-nil only when every generation call failed.
func (s *Service) Summarize(ctx context.Context, title, content string) (*interfaces.SummaryOutput, error) {
	output := &interfaces.SummaryOutput{}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0

	fail := func(field string, err error) {
		mu.Lock()
		failures++
		mu.Unlock()
		s.logger.Warn().Err(err).
			Str("field", field).
			Str("title", title).
			Msg("Enrichment call failed, using fallback")
	}

	wg.Add(4)

	go func() {
		defer wg.Done()
		text, err := s.generateExecutiveSummary(ctx, title, content)
		if err != nil {
			fail("executive_summary", err)
			text = fallbackExecutiveSummary
		}
		output.ExecutiveSummary = text
	}()

	go func() {
		defer wg.Done()
		text, err := s.generateFullSummary(ctx, title, content)
		if err != nil {
			fail("full_summary", err)
			text = fallbackFullSummary
		}
		output.FullSummary = text
	}()

	go func() {
		defer wg.Done()
		points, err := s.generateKeyPoints(ctx, title, content)
		if err != nil {
			fail("key_points", err)
			points = fallbackKeyPoints
		}
		output.KeyPoints = points
	}()

	go func() {
		defer wg.Done()
		categories, err := s.generateCategories(ctx, title, content)
		if err != nil {
			fail("categories", err)
			categories = fallbackCategories
		}
		output.Categories = categories
	}()

	wg.Wait()

	if failures == 4 {
		return nil, fmt.Errorf("all enrichment calls failed for article '%s'", title)
	}
	return output, nil
}

func (s *Service) generateExecutiveSummary(ctx context.Context, title, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a concise 2-3 sentence executive summary of the following article.\n\nTitle: %s\n\nContent:\n%s",
		title, truncate(content, executiveContentLimit))

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You summarize articles accurately and concisely. Respond with the summary only, no preamble."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

func (s *Service) generateFullSummary(ctx context.Context, title, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a detailed multi-paragraph summary of the following article, covering its main arguments and conclusions.\n\nTitle: %s\n\nContent:\n%s",
		title, truncate(content, fullContentLimit))

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You summarize articles accurately. Respond with the summary only, no preamble."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

func (s *Service) generateKeyPoints(ctx context.Context, title, content string) ([]string, error) {
	prompt := fmt.Sprintf(
		"List the 5-7 most important points from the following article. Respond with one point per line, no numbering or bullets.\n\nTitle: %s\n\nContent:\n%s",
		title, truncate(content, listContentLimit))

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You extract key points from articles. Respond with one point per line and nothing else."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	points := parseLines(response, maxKeyPoints, 0)
	if len(points) == 0 {
		return nil, fmt.Errorf("no key points in response")
	}
	return points, nil
}

func (s *Service) generateCategories(ctx context.Context, title, content string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Assign 1-3 short topic categories to the following article (for example: Technology, Health, Finance). Respond with one category per line, no numbering.\n\nTitle: %s\n\nContent:\n%s",
		title, truncate(content, listContentLimit))

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You categorize articles. Respond with one short category name per line and nothing else."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	categories := parseLines(response, maxCategories, maxCategoryLen)
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories in response")
	}
	return categories, nil
}

// parseLines splits a list-style LLM response into clean entries,
// stripping bullets and numbering and dropping over-length lines
func parseLines(response string, maxEntries, maxLen int) []string {
	var entries []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. \t")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if maxLen > 0 && len(line) > maxLen {
			continue
		}
		entries = append(entries, line)
		if len(entries) >= maxEntries {
			break
		}
	}
	return entries
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
