// -----------------------------------------------------------------------
// Transcript Service - YouTube caption retrieval for video ingestion
// -----------------------------------------------------------------------

package transcripts

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
)

const timedtextEndpoint = "https://www.youtube.com/api/timedtext"

// Service fetches video transcripts from the YouTube timedtext caption
// endpoint. Only videos with published captions produce a transcript;
// everything else returns an error and the video is skipped.
type Service struct {
	logger   arbor.ILogger
	client   *http.Client
	endpoint string
	language string
}

// NewService creates a new transcript service
func NewService(config *common.SearchConfig, logger arbor.ILogger) (*Service, error) {
	timeout, err := time.ParseDuration(config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid request timeout '%s': %w", config.RequestTimeout, err)
	}

	return &Service{
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
		endpoint: timedtextEndpoint,
		language: "en",
	}, nil
}

type timedtextTranscript struct {
	XMLName xml.Name        `xml:"transcript"`
	Texts   []timedtextLine `xml:"text"`
}

type timedtextLine struct {
	Start string `xml:"start,attr"`
	Value string `xml:",chardata"`
}

// Fetch returns the caption text of a video joined into a single string
func (s *Service) Fetch(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("video id cannot be empty")
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", s.language)
	requestURL := s.endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build transcript request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript request returned status %d for video %s", resp.StatusCode, videoID)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read transcript response: %w", err)
	}

	transcript, err := parseTimedtext(data)
	if err != nil {
		return "", err
	}
	if transcript == "" {
		return "", fmt.Errorf("no captions available for video %s", videoID)
	}

	s.logger.Debug().
		Str("video_id", videoID).
		Int("length", len(transcript)).
		Msg("Transcript fetched")

	return transcript, nil
}

// parseTimedtext joins the caption lines of a timedtext XML document,
// unescaping the doubly-encoded HTML entities YouTube emits
func parseTimedtext(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var doc timedtextTranscript
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse transcript XML: %w", err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, line := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(line.Value))
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " "), nil
}
