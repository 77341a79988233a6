// -----------------------------------------------------------------------
// Article - Curated content item with summary and embedding
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies where an article was acquired from
type SourceType string

const (
	SourceTypeWebSearch SourceType = "web_search"
	SourceTypeRSS       SourceType = "rss"
	SourceTypeYouTube   SourceType = "youtube"
)

// Summary holds the LLM-generated enrichment for an article.
// Fields fall back to placeholder defaults when individual generation
// calls fail, so a partially enriched article is still persisted.
type Summary struct {
	ExecutiveSummary string   `json:"executive_summary"`
	FullSummary      string   `json:"full_summary"`
	KeyPoints        []string `json:"key_points"`
	Categories       []string `json:"categories"`
}

// Embedding holds the vector representation of an article
type Embedding struct {
	Vector      []float32 `json:"vector"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Article represents a curated content item. URL is canonical and unique;
// duplicate detection runs against it before any fetch or enrichment.
type Article struct {
	ID          string     `json:"id" badgerhold:"key"`
	Title       string     `json:"title"`
	URL         string     `json:"url" badgerholdIndex:"URL"`
	SourceType  SourceType `json:"source_type" badgerholdIndex:"SourceType"`
	SourceName  string     `json:"source_name"`
	Content     string     `json:"content"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Summary     *Summary   `json:"summary,omitempty"`
	Embedding   *Embedding `json:"embedding,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewArticle creates an article with a fresh id and timestamps
func NewArticle(title, url string, sourceType SourceType, sourceName, content string) *Article {
	now := time.Now().UTC()
	return &Article{
		ID:         uuid.New().String(),
		Title:      title,
		URL:        url,
		SourceType: sourceType,
		SourceName: sourceName,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasEmbedding returns true if a non-empty vector is attached
func (a *Article) HasEmbedding() bool {
	return a.Embedding != nil && len(a.Embedding.Vector) > 0
}

// ArticleLink is an undirected semantic similarity link between two
// articles. At most one link exists per unordered pair; the storage layer
// checks both directions before insert and cascades deletes.
type ArticleLink struct {
	ID              string    `json:"id" badgerhold:"key"`
	SourceID        string    `json:"source_id" badgerholdIndex:"SourceID"`
	TargetID        string    `json:"target_id" badgerholdIndex:"TargetID"`
	SimilarityScore float64   `json:"similarity_score"`
	LinkType        string    `json:"link_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// LinkTypeSemantic marks links derived from embedding similarity
const LinkTypeSemantic = "semantic"

// NewArticleLink creates a semantic link between two articles
func NewArticleLink(sourceID, targetID string, score float64) *ArticleLink {
	return &ArticleLink{
		ID:              uuid.New().String(),
		SourceID:        sourceID,
		TargetID:        targetID,
		SimilarityScore: score,
		LinkType:        LinkTypeSemantic,
		CreatedAt:       time.Now().UTC(),
	}
}

// SearchResult is a single hit from the web search provider
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// VideoResult is a single hit from the video search provider
type VideoResult struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	Description  string `json:"description"`
	URL          string `json:"url"`
}
