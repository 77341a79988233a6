package interfaces

import (
	"context"

	"github.com/ternarybob/curio/internal/models"
)

// WebSearchService finds article candidates for a query
type WebSearchService interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
}

// VideoSearchService finds video candidates for a query
type VideoSearchService interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.VideoResult, error)
}

// TranscriptService fetches the transcript text for a video
type TranscriptService interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// ContentFetcher retrieves a page and returns cleaned markdown content
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedPage, error)
}

// FetchedPage is the cleaned result of a page fetch
type FetchedPage struct {
	Title   string
	Content string // Markdown
}

// MailService delivers a composed message
type MailService interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}
