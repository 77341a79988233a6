// -----------------------------------------------------------------------
// YouTube Search - video discovery for research jobs
// -----------------------------------------------------------------------

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/llm"
)

const youtubeSearchEndpoint = "https://www.googleapis.com/youtube/v3/search"

// YouTubeService implements video search against the YouTube Data API v3.
// A missing API key is tolerated: research jobs degrade to web-only
// results instead of failing outright.
type YouTubeService struct {
	config   *common.SearchConfig
	logger   arbor.ILogger
	client   *http.Client
	retry    *llm.RetryConfig
	endpoint string
}

// NewYouTubeService creates a new YouTube video search service
func NewYouTubeService(config *common.SearchConfig, logger arbor.ILogger) (*YouTubeService, error) {
	timeout, err := time.ParseDuration(config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid search request timeout '%s': %w", config.RequestTimeout, err)
	}

	if config.YouTubeAPIKey == "" {
		logger.Warn().Msg("YouTube API key not configured, video search will return no results")
	}

	return &YouTubeService{
		config:   config,
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
		retry:    llm.NewDefaultRetryConfig(),
		endpoint: youtubeSearchEndpoint,
	}, nil
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Description  string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search returns up to maxResults video candidates for the query
func (s *YouTubeService) Search(ctx context.Context, query string, maxResults int) ([]models.VideoResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if s.config.YouTubeAPIKey == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = s.config.MaxResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("key", s.config.YouTubeAPIKey)
	requestURL := s.endpoint + "?" + params.Encode()

	var parsed youtubeSearchResponse
	err := s.retry.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if reqErr != nil {
			return fmt.Errorf("failed to build search request: %w", reqErr)
		}

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
		return nil, fmt.Errorf("YouTube search failed: %w", err)
	}

	results := make([]models.VideoResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, models.VideoResult{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			Description:  item.Snippet.Description,
			URL:          common.YouTubeWatchURL(item.ID.VideoID),
		})
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("YouTube search completed")

	return results, nil
}
