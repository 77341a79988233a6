package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/curio/internal/models"
)

// Sentinel errors returned by storage implementations. Callers match with
// errors.Is after unwrapping.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrJobRunning indicates a mutation was rejected because the job is running
	ErrJobRunning = errors.New("job is running")
	// ErrDuplicateURL indicates an article with the same canonical URL exists
	ErrDuplicateURL = errors.New("duplicate article URL")
)

// JobListOptions filters and paginates job listings
type JobListOptions struct {
	Type   models.JobType   // Empty matches all types
	Status models.JobStatus // Empty matches all statuses
	Limit  int              // 0 means no limit
	Offset int
}

// JobStorage - interface for job record persistence
type JobStorage interface {
	// SaveJob inserts or updates a job record
	SaveJob(ctx context.Context, job *models.Job) error

	// GetJob returns a job by id, ErrNotFound if absent
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// ListJobs returns jobs matching opts, newest first
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)

	// DeleteJob removes a job. Returns ErrJobRunning while the job runs,
	// ErrNotFound if absent.
	DeleteJob(ctx context.Context, id string) error

	// CountJobsByStatus returns job counts grouped by status
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)
}

// ArticleListOptions filters and paginates article listings
type ArticleListOptions struct {
	SourceType models.SourceType // Empty matches all source types
	Limit      int               // 0 means no limit
	Offset     int
}

// ArticleStorage - interface for article and similarity link persistence
type ArticleStorage interface {
	// Article operations
	SaveArticle(ctx context.Context, article *models.Article) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	GetArticleByURL(ctx context.Context, url string) (*models.Article, error)
	ListArticles(ctx context.Context, opts *ArticleListOptions) ([]*models.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	CountArticles(ctx context.Context) (int, error)

	// Embedding queries
	ListArticlesWithoutEmbedding(ctx context.Context, limit int) ([]*models.Article, error)
	ListArticlesWithEmbedding(ctx context.Context) ([]*models.Article, error)
	CountArticlesWithEmbedding(ctx context.Context) (int, error)

	// Link operations. LinkExists checks both directions of the pair.
	SaveLink(ctx context.Context, link *models.ArticleLink) error
	LinkExists(ctx context.Context, articleA, articleB string) (bool, error)
	ListLinksForArticle(ctx context.Context, articleID string) ([]*models.ArticleLink, error)
	CountLinks(ctx context.Context) (int, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	JobStorage() JobStorage
	ArticleStorage() ArticleStorage
	Close() error
}
