package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
)

// stubArticles is an in-memory ArticleStorage covering the operations
// ingestion touches
type stubArticles struct {
	mu       sync.Mutex
	articles map[string]*models.Article // keyed by URL
}

func newStubArticles() *stubArticles {
	return &stubArticles{articles: map[string]*models.Article{}}
}

func (s *stubArticles) SaveArticle(ctx context.Context, article *models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.URL] = article
	return nil
}

func (s *stubArticles) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.articles {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (s *stubArticles) GetArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.articles[url]; ok {
		return a, nil
	}
	return nil, interfaces.ErrNotFound
}

func (s *stubArticles) ListArticles(ctx context.Context, opts *interfaces.ArticleListOptions) ([]*models.Article, error) {
	return nil, nil
}
func (s *stubArticles) DeleteArticle(ctx context.Context, id string) error { return nil }
func (s *stubArticles) CountArticles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles), nil
}
func (s *stubArticles) ListArticlesWithoutEmbedding(ctx context.Context, limit int) ([]*models.Article, error) {
	return nil, nil
}
func (s *stubArticles) ListArticlesWithEmbedding(ctx context.Context) ([]*models.Article, error) {
	return nil, nil
}
func (s *stubArticles) CountArticlesWithEmbedding(ctx context.Context) (int, error) { return 0, nil }
func (s *stubArticles) SaveLink(ctx context.Context, link *models.ArticleLink) error {
	return nil
}
func (s *stubArticles) LinkExists(ctx context.Context, a, b string) (bool, error) { return false, nil }
func (s *stubArticles) ListLinksForArticle(ctx context.Context, id string) ([]*models.ArticleLink, error) {
	return nil, nil
}
func (s *stubArticles) CountLinks(ctx context.Context) (int, error) { return 0, nil }

type stubWebSearch struct {
	results []models.SearchResult
	err     error
}

func (s *stubWebSearch) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	return s.results, s.err
}

// stubFetcher serves canned pages and fails on listed URLs
type stubFetcher struct {
	pages  map[string]*interfaces.FetchedPage
	failOn map[string]bool
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*interfaces.FetchedPage, error) {
	if s.failOn[url] {
		return nil, errors.New("connection refused")
	}
	if page, ok := s.pages[url]; ok {
		return page, nil
	}
	return nil, errors.New("no such page")
}

type stubTranscripts struct {
	transcripts map[string]string
}

func (s *stubTranscripts) Fetch(ctx context.Context, videoID string) (string, error) {
	if text, ok := s.transcripts[videoID]; ok {
		return text, nil
	}
	return "", errors.New("no captions")
}

type stubSummarizer struct{}

func (s *stubSummarizer) Summarize(ctx context.Context, title, content string) (*interfaces.SummaryOutput, error) {
	return &interfaces.SummaryOutput{
		ExecutiveSummary: "Summary of " + title,
		FullSummary:      "Full summary of " + title,
		KeyPoints:        []string{"point"},
		Categories:       []string{"Technology"},
	}, nil
}

func testConfig() *common.IngestionConfig {
	return &common.IngestionConfig{
		UserAgent:        "curio-test",
		RequestTimeout:   "5s",
		MaxContentLength: 15000,
		MinWebContent:    200,
		MinFeedContent:   100,
	}
}

func longContent(n int) string {
	return strings.Repeat("Relevant article text. ", n)
}

func newTestIngestion(articles *stubArticles, web *stubWebSearch, fetcher *stubFetcher, transcripts *stubTranscripts) *Service {
	return NewService(articles, web, fetcher, transcripts, &stubSummarizer{}, nil, testConfig(), arbor.NewLogger())
}

func TestIngestTopicCreatesArticles(t *testing.T) {
	articles := newStubArticles()
	web := &stubWebSearch{results: []models.SearchResult{
		{Title: "One", URL: "https://example.com/one"},
		{Title: "Two", URL: "https://example.com/two"},
	}}
	fetcher := &stubFetcher{pages: map[string]*interfaces.FetchedPage{
		"https://example.com/one": {Title: "One", Content: longContent(20)},
		"https://example.com/two": {Title: "Two", Content: longContent(20)},
	}}

	service := newTestIngestion(articles, web, fetcher, nil)

	var lastProcessed, lastCreated int
	result, err := service.IngestTopic(context.Background(), "test", 5, func(total, processed, created int) {
		lastProcessed, lastCreated = processed, created
	})
	if err != nil {
		t.Fatalf("IngestTopic failed: %v", err)
	}

	if result.Created != 2 || result.Processed != 2 || len(result.Errors) != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if lastProcessed != 2 || lastCreated != 2 {
		t.Errorf("Progress callback saw processed=%d created=%d", lastProcessed, lastCreated)
	}

	saved, err := articles.GetArticleByURL(context.Background(), "https://example.com/one")
	if err != nil {
		t.Fatalf("Article not saved: %v", err)
	}
	if saved.Summary == nil || saved.Summary.ExecutiveSummary == "" {
		t.Error("Article saved without enrichment")
	}
	if saved.SourceType != models.SourceTypeWebSearch {
		t.Errorf("Unexpected source type: %s", saved.SourceType)
	}
}

func TestIngestTopicIsolatesItemFailures(t *testing.T) {
	articles := newStubArticles()
	web := &stubWebSearch{results: []models.SearchResult{
		{Title: "One", URL: "https://example.com/one"},
		{Title: "Broken", URL: "https://example.com/broken"},
		{Title: "Three", URL: "https://example.com/three"},
	}}
	fetcher := &stubFetcher{
		pages: map[string]*interfaces.FetchedPage{
			"https://example.com/one":   {Title: "One", Content: longContent(20)},
			"https://example.com/three": {Title: "Three", Content: longContent(20)},
		},
		failOn: map[string]bool{"https://example.com/broken": true},
	}

	service := newTestIngestion(articles, web, fetcher, nil)

	result, err := service.IngestTopic(context.Background(), "test", 5, nil)
	if err != nil {
		t.Fatalf("IngestTopic failed: %v", err)
	}

	if result.Created != 2 {
		t.Errorf("Expected 2 created despite one failure, got %d", result.Created)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "broken") {
		t.Errorf("Expected one error for the broken URL, got %v", result.Errors)
	}
	if !result.Success() {
		t.Error("Partial failure with created articles should still be a success")
	}
}

func TestIngestTopicSkipsDuplicates(t *testing.T) {
	articles := newStubArticles()
	existing := models.NewArticle("One", "https://example.com/one", models.SourceTypeWebSearch, "test", longContent(20))
	articles.SaveArticle(context.Background(), existing)

	// Tracking params canonicalize away, so this URL is a duplicate
	web := &stubWebSearch{results: []models.SearchResult{
		{Title: "One", URL: "https://example.com/one?utm_source=newsletter"},
	}}
	fetcher := &stubFetcher{pages: map[string]*interfaces.FetchedPage{}}

	service := newTestIngestion(articles, web, fetcher, nil)

	result, err := service.IngestTopic(context.Background(), "test", 5, nil)
	if err != nil {
		t.Fatalf("IngestTopic failed: %v", err)
	}
	if result.Skipped != 1 || result.Created != 0 {
		t.Errorf("Expected 1 skipped duplicate, got %+v", result)
	}
}

func TestIngestTopicRejectsShortContent(t *testing.T) {
	articles := newStubArticles()
	web := &stubWebSearch{results: []models.SearchResult{
		{Title: "Stub", URL: "https://example.com/stub"},
	}}
	fetcher := &stubFetcher{pages: map[string]*interfaces.FetchedPage{
		"https://example.com/stub": {Title: "Stub", Content: "too short"},
	}}

	service := newTestIngestion(articles, web, fetcher, nil)

	result, err := service.IngestTopic(context.Background(), "test", 5, nil)
	if err != nil {
		t.Fatalf("IngestTopic failed: %v", err)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "too short") {
		t.Errorf("Expected content floor error, got %v", result.Errors)
	}
	if count, _ := articles.CountArticles(context.Background()); count != 0 {
		t.Errorf("Expected no articles saved, got %d", count)
	}
}

func TestIngestVideoUsesTranscript(t *testing.T) {
	articles := newStubArticles()
	transcripts := &stubTranscripts{transcripts: map[string]string{
		"dQw4w9WgXcQ": longContent(10),
	}}

	service := newTestIngestion(articles, nil, nil, transcripts)

	created, err := service.IngestVideo(context.Background(), models.VideoResult{
		VideoID:      "dQw4w9WgXcQ",
		Title:        "A Talk",
		ChannelTitle: "Conf Channel",
		Description:  "Talk description",
		URL:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	if err != nil {
		t.Fatalf("IngestVideo failed: %v", err)
	}
	if !created {
		t.Fatal("Expected video article to be created")
	}

	saved, err := articles.GetArticleByURL(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Video article not saved: %v", err)
	}
	if saved.SourceType != models.SourceTypeYouTube {
		t.Errorf("Unexpected source type: %s", saved.SourceType)
	}
	if saved.SourceName != "Conf Channel" {
		t.Errorf("Unexpected source name: %s", saved.SourceName)
	}
	if !strings.Contains(saved.Content, "Talk description") {
		t.Error("Content should include the video description")
	}
}

func TestIngestVideoWithoutCaptions(t *testing.T) {
	articles := newStubArticles()
	transcripts := &stubTranscripts{transcripts: map[string]string{}}

	service := newTestIngestion(articles, nil, nil, transcripts)

	_, err := service.IngestVideo(context.Background(), models.VideoResult{
		VideoID: "abc123def45",
		URL:     "https://www.youtube.com/watch?v=abc123def45",
	})
	if err == nil {
		t.Fatal("Expected error for video without captions")
	}
}

func TestIngestVideosIsolatesFailures(t *testing.T) {
	articles := newStubArticles()
	transcripts := &stubTranscripts{transcripts: map[string]string{
		"aaaaaaaaaaa": longContent(10),
	}}

	service := newTestIngestion(articles, nil, nil, transcripts)

	result := service.IngestVideos(context.Background(), []models.VideoResult{
		{VideoID: "aaaaaaaaaaa", Title: "Has Captions", URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
		{VideoID: "bbbbbbbbbbb", Title: "No Captions", URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb"},
	}, nil)

	if result.Created != 1 {
		t.Errorf("Expected 1 created, got %d", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error, got %v", result.Errors)
	}
}

type feedServer struct {
	server *httptest.Server
	url    string
}

func newFeedServer(t *testing.T, feedXML string) *feedServer {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	return &feedServer{server: server, url: server.URL}
}

func (f *feedServer) close() {
	f.server.Close()
}

func TestParseFeedRSS(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>Entry One</title>
      <link>https://example.com/entry-one</link>
      <description>&lt;p&gt;Entry body&lt;/p&gt;</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    </item>
  </channel>
</rss>`)

	entries, title, err := parseFeed(data)
	if err != nil {
		t.Fatalf("parseFeed failed: %v", err)
	}
	if title != "Example Feed" {
		t.Errorf("Feed title = %q", title)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].URL != "https://example.com/entry-one" {
		t.Errorf("Entry URL = %q", entries[0].URL)
	}
	if entries[0].PublishedAt == nil {
		t.Error("Expected parsed publish time")
	}
}

func TestParseFeedAtom(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Atom Entry</title>
    <link rel="alternate" href="https://example.com/atom-entry"/>
    <summary>Entry summary text</summary>
    <updated>2026-01-02T15:04:05Z</updated>
    <author><name>Author Name</name></author>
  </entry>
</feed>`)

	entries, title, err := parseFeed(data)
	if err != nil {
		t.Fatalf("parseFeed failed: %v", err)
	}
	if title != "Atom Feed" {
		t.Errorf("Feed title = %q", title)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].URL != "https://example.com/atom-entry" {
		t.Errorf("Entry URL = %q", entries[0].URL)
	}
	if entries[0].Author != "Author Name" {
		t.Errorf("Entry author = %q", entries[0].Author)
	}
}

func TestParseFeedMalformed(t *testing.T) {
	if _, _, err := parseFeed([]byte("<html><body>not a feed</body></html>")); err == nil {
		t.Fatal("Expected error for non-feed document")
	}
}

func TestIngestFeedEndToEnd(t *testing.T) {
	body := longContent(10)
	feedXML := fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>Entry One</title>
      <link>https://example.com/entry-one</link>
      <description>%s</description>
    </item>
    <item>
      <title>Entry Two</title>
      <link>https://example.com/entry-two</link>
      <description>short</description>
    </item>
  </channel>
</rss>`, body)

	articles := newStubArticles()
	// Entry two is thin, the fallback page fetch also fails
	fetcher := &stubFetcher{
		pages:  map[string]*interfaces.FetchedPage{},
		failOn: map[string]bool{"https://example.com/entry-two": true},
	}

	service := newTestIngestion(articles, nil, fetcher, nil)

	server := newFeedServer(t, feedXML)
	defer server.close()

	result, err := service.IngestFeed(context.Background(), server.url, "Example", 10, nil)
	if err != nil {
		t.Fatalf("IngestFeed failed: %v", err)
	}

	if result.Created != 1 {
		t.Errorf("Expected 1 created, got %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error for the thin entry, got %v", result.Errors)
	}

	saved, err := articles.GetArticleByURL(context.Background(), "https://example.com/entry-one")
	if err != nil {
		t.Fatalf("Feed article not saved: %v", err)
	}
	if saved.SourceType != models.SourceTypeRSS {
		t.Errorf("Unexpected source type: %s", saved.SourceType)
	}
	if saved.SourceName != "Example" {
		t.Errorf("Unexpected source name: %s", saved.SourceName)
	}
}
