// -----------------------------------------------------------------------
// Tavily Search - web search provider for topic ingestion and research
// -----------------------------------------------------------------------

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/llm"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyService implements web search against the Tavily API
type TavilyService struct {
	config   *common.SearchConfig
	logger   arbor.ILogger
	client   *http.Client
	retry    *llm.RetryConfig
	endpoint string
}

// NewTavilyService creates a new Tavily web search service. The API key
// is required; topic ingestion and research cannot run without it.
func NewTavilyService(config *common.SearchConfig, logger arbor.ILogger) (*TavilyService, error) {
	if config.TavilyAPIKey == "" {
		return nil, fmt.Errorf("Tavily API key is required (set TAVILY_API_KEY or search.tavily_api_key in config)")
	}

	timeout, err := time.ParseDuration(config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid search request timeout '%s': %w", config.RequestTimeout, err)
	}

	return &TavilyService{
		config:   config,
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
		retry:    llm.NewDefaultRetryConfig(),
		endpoint: tavilyEndpoint,
	}, nil
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"results"`
}

// Search returns up to maxResults article candidates for the query
func (s *TavilyService) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if maxResults <= 0 {
		maxResults = s.config.MaxResults
	}

	reqBody := tavilyRequest{
		APIKey:      s.config.TavilyAPIKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var parsed tavilyResponse
	err = s.retry.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if reqErr != nil {
			return fmt.Errorf("failed to build search request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := s.client.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &llm.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return json.NewDecoder(resp.Body).Decode(&parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("Tavily search failed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, models.SearchResult{Title: r.Title, URL: r.URL})
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Tavily search completed")

	return results, nil
}
