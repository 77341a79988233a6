// -----------------------------------------------------------------------
// Fetcher Service - page retrieval and content extraction
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
)

// Elements stripped before extraction. Navigation chrome and scripts
// never carry article content.
var strippedSelectors = []string{"script", "style", "nav", "footer", "header", "aside", "noscript", "iframe", "form"}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

const maxResponseBytes = 8 << 20

// Service retrieves web pages and extracts their readable content as
// markdown, truncated to the configured cap.
type Service struct {
	config *common.IngestionConfig
	logger arbor.ILogger
	client *http.Client
}

// NewService creates a new fetcher service
func NewService(config *common.IngestionConfig, logger arbor.ILogger) (*Service, error) {
	timeout, err := time.ParseDuration(config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid request timeout '%s': %w", config.RequestTimeout, err)
	}

	return &Service{
		config: config,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Fetch retrieves the page at url and returns its title and cleaned
// markdown content
func (s *Service) Fetch(ctx context.Context, url string) (*interfaces.FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", url, err)
	}

	page, err := s.extract(string(body), url)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("url", url).
		Str("title", page.Title).
		Int("content_length", len(page.Content)).
		Msg("Page fetched")

	return page, nil
}

// extract parses the HTML, strips non-content elements and converts the
// remainder to markdown
func (s *Service) extract(html, baseURL string) (*interfaces.FetchedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(strings.Join(strippedSelectors, ", ")).Remove()

	// Prefer the semantic article or main element when the page has one
	selection := doc.Find("article").First()
	if selection.Length() == 0 {
		selection = doc.Find("main").First()
	}
	if selection.Length() == 0 {
		selection = doc.Find("body").First()
	}
	if selection.Length() == 0 {
		return nil, fmt.Errorf("no content found in page")
	}

	contentHTML, err := goquery.OuterHtml(selection)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize content: %w", err)
	}

	converter := md.NewConverter(baseURL, true, nil)
	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", baseURL).Msg("Markdown conversion failed, using plain text")
		markdown = selection.Text()
	}

	content := cleanWhitespace(markdown)
	if len(content) > s.config.MaxContentLength {
		content = content[:s.config.MaxContentLength]
	}

	return &interfaces.FetchedPage{
		Title:   title,
		Content: content,
	}, nil
}

// cleanWhitespace trims each line and collapses runs of blank lines
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	cleaned := strings.Join(lines, "\n")
	cleaned = blankLinesRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
