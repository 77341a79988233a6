package ingestion

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/models"
)

// feedEntry is a normalized item from an RSS 2.0 or Atom feed
type feedEntry struct {
	Title       string
	URL         string
	Content     string
	Author      string
	PublishedAt *time.Time
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			Encoded     string `xml:"encoded"`
			Author      string `xml:"creator"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	XMLName xml.Name `xml:"feed"`
	Title   string   `xml:"title"`
	Entries []struct {
		Title   string `xml:"title"`
		Links   []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
		Author    struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

// IngestFeed fetches an RSS/Atom feed and ingests its entries up to
// maxArticles. Entries without a usable body fall back to fetching the
// linked page.
func (s *Service) IngestFeed(ctx context.Context, feedURL, sourceName string, maxArticles int, progress ProgressFunc) (*Result, error) {
	data, err := s.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	entries, feedTitle, err := parseFeed(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	if sourceName == "" {
		sourceName = feedTitle
	}
	if maxArticles > 0 && len(entries) > maxArticles {
		entries = entries[:maxArticles]
	}

	s.logger.Info().
		Str("feed_url", feedURL).
		Str("source", sourceName).
		Int("entries", len(entries)).
		Msg("Feed ingestion started")

	result := &Result{}
	total := len(entries)

	for _, entry := range entries {
		if ctx.Err() != nil {
			result.addError(fmt.Sprintf("ingestion cancelled: %v", ctx.Err()))
			break
		}

		created, err := s.ingestFeedEntry(ctx, entry, sourceName)
		result.Processed++
		if err != nil {
			result.addError(fmt.Sprintf("%s: %v", entry.URL, err))
			s.logger.Warn().Err(err).Str("url", entry.URL).Msg("Feed entry ingestion failed")
		} else if created {
			result.Created++
		} else {
			result.Skipped++
		}
		notifyProgress(progress, total, result.Processed, result.Created)
	}

	return result, nil
}

func (s *Service) fetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed for %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch returned status %d for %s", resp.StatusCode, feedURL)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func (s *Service) ingestFeedEntry(ctx context.Context, entry feedEntry, sourceName string) (bool, error) {
	if entry.URL == "" {
		return false, fmt.Errorf("entry has no link")
	}

	canonical, err := common.CanonicalURL(entry.URL)
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

	content := htmlToText(entry.Content)

	// Thin entries (headline-only feeds) fall back to the linked page
	if len(content) < s.config.MinFeedContent {
		page, fetchErr := s.fetcher.Fetch(ctx, entry.URL)
		if fetchErr == nil && len(page.Content) > len(content) {
			content = page.Content
		}
	}
	if len(content) < s.config.MinFeedContent {
		return false, fmt.Errorf("content too short (%d chars, floor %d)", len(content), s.config.MinFeedContent)
	}
	if len(content) > s.config.MaxContentLength {
		content = content[:s.config.MaxContentLength]
	}

	title := entry.Title
	if title == "" {
		title = canonical
	}

	article := models.NewArticle(title, canonical, models.SourceTypeRSS, sourceName, content)
	article.Author = entry.Author
	article.PublishedAt = entry.PublishedAt

	if err := s.persistArticle(ctx, article); err != nil {
		return false, err
	}
	return true, nil
}

// parseFeed detects the feed flavor by root element and normalizes it
func parseFeed(data []byte) ([]feedEntry, string, error) {
	var rss rssDocument
	if err := xml.Unmarshal(data, &rss); err == nil && len(rss.Channel.Items) > 0 {
		entries := make([]feedEntry, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			content := item.Encoded
			if content == "" {
				content = item.Description
			}
			entries = append(entries, feedEntry{
				Title:       strings.TrimSpace(item.Title),
				URL:         strings.TrimSpace(item.Link),
				Content:     content,
				Author:      strings.TrimSpace(item.Author),
				PublishedAt: parseFeedTime(item.PubDate),
			})
		}
		return entries, strings.TrimSpace(rss.Channel.Title), nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(data, &atom); err == nil && len(atom.Entries) > 0 {
		entries := make([]feedEntry, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			content := entry.Content
			if content == "" {
				content = entry.Summary
			}
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			entries = append(entries, feedEntry{
				Title:       strings.TrimSpace(entry.Title),
				URL:         atomLink(entry.Links),
				Content:     content,
				Author:      strings.TrimSpace(entry.Author.Name),
				PublishedAt: parseFeedTime(published),
			})
		}
		return entries, strings.TrimSpace(atom.Title), nil
	}

	return nil, "", fmt.Errorf("document is neither RSS nor Atom")
}

// atomLink picks the alternate link, falling back to the first
func atomLink(links []struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}) string {
	for _, link := range links {
		if link.Rel == "" || link.Rel == "alternate" {
			return strings.TrimSpace(link.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var feedTimeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, format := range feedTimeFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

// htmlToText converts feed entry HTML to markdown, falling back to the
// raw text when conversion fails
func htmlToText(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(converted)
}
