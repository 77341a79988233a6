package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ArticleStorage implements the ArticleStorage interface for Badger
type ArticleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArticleStorage creates a new ArticleStorage instance
func NewArticleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ArticleStorage) SaveArticle(ctx context.Context, article *models.Article) error {
	if article.ID == "" {
		return fmt.Errorf("article ID is required")
	}
	if article.URL == "" {
		return fmt.Errorf("article URL is required")
	}

	if err := s.db.Store().Upsert(article.ID, article); err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

func (s *ArticleStorage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	if err := s.db.Store().Get(id, &article); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("article %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

func (s *ArticleStorage) GetArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	var articles []models.Article
	if err := s.db.Store().Find(&articles, badgerhold.Where("URL").Eq(url).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to query article by URL: %w", err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("article with URL %s: %w", url, interfaces.ErrNotFound)
	}
	return &articles[0], nil
}

func (s *ArticleStorage) ListArticles(ctx context.Context, opts *interfaces.ArticleListOptions) ([]*models.Article, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.SourceType != "" {
			query = query.And("SourceType").Eq(opts.SourceType)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var articles []models.Article
	if err := s.db.Store().Find(&articles, query); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	result := make([]*models.Article, len(articles))
	for i := range articles {
		result[i] = &articles[i]
	}
	return result, nil
}

// DeleteArticle removes an article and cascades to its similarity links
func (s *ArticleStorage) DeleteArticle(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Article{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("article %s: %w", id, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to delete article: %w", err)
	}

	if err := s.db.Store().DeleteMatching(&models.ArticleLink{}, badgerhold.Where("SourceID").Eq(id)); err != nil {
		s.logger.Warn().Err(err).Str("article_id", id).Msg("Failed to delete outbound links")
	}
	if err := s.db.Store().DeleteMatching(&models.ArticleLink{}, badgerhold.Where("TargetID").Eq(id)); err != nil {
		s.logger.Warn().Err(err).Str("article_id", id).Msg("Failed to delete inbound links")
	}

	s.logger.Debug().Str("article_id", id).Msg("Article deleted")
	return nil
}

func (s *ArticleStorage) CountArticles(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Article{}, badgerhold.Where("ID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return int(count), nil
}

func (s *ArticleStorage) ListArticlesWithoutEmbedding(ctx context.Context, limit int) ([]*models.Article, error) {
	var articles []models.Article
	if err := s.db.Store().Find(&articles, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	result := make([]*models.Article, 0)
	for i := range articles {
		if articles[i].HasEmbedding() {
			continue
		}
		result = append(result, &articles[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *ArticleStorage) ListArticlesWithEmbedding(ctx context.Context) ([]*models.Article, error) {
	var articles []models.Article
	if err := s.db.Store().Find(&articles, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	result := make([]*models.Article, 0)
	for i := range articles {
		if articles[i].HasEmbedding() {
			result = append(result, &articles[i])
		}
	}
	return result, nil
}

func (s *ArticleStorage) CountArticlesWithEmbedding(ctx context.Context) (int, error) {
	articles, err := s.ListArticlesWithEmbedding(ctx)
	if err != nil {
		return 0, err
	}
	return len(articles), nil
}

func (s *ArticleStorage) SaveLink(ctx context.Context, link *models.ArticleLink) error {
	if link.ID == "" {
		return fmt.Errorf("link ID is required")
	}
	if link.SourceID == link.TargetID {
		return fmt.Errorf("link endpoints must differ")
	}

	if err := s.db.Store().Upsert(link.ID, link); err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	return nil
}

// LinkExists checks both orientations of the unordered pair
func (s *ArticleStorage) LinkExists(ctx context.Context, articleA, articleB string) (bool, error) {
	count, err := s.db.Store().Count(&models.ArticleLink{},
		badgerhold.Where("SourceID").Eq(articleA).And("TargetID").Eq(articleB))
	if err != nil {
		return false, fmt.Errorf("failed to query links: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	count, err = s.db.Store().Count(&models.ArticleLink{},
		badgerhold.Where("SourceID").Eq(articleB).And("TargetID").Eq(articleA))
	if err != nil {
		return false, fmt.Errorf("failed to query links: %w", err)
	}
	return count > 0, nil
}

func (s *ArticleStorage) ListLinksForArticle(ctx context.Context, articleID string) ([]*models.ArticleLink, error) {
	var outbound []models.ArticleLink
	if err := s.db.Store().Find(&outbound, badgerhold.Where("SourceID").Eq(articleID)); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	var inbound []models.ArticleLink
	if err := s.db.Store().Find(&inbound, badgerhold.Where("TargetID").Eq(articleID)); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	result := make([]*models.ArticleLink, 0, len(outbound)+len(inbound))
	for i := range outbound {
		result = append(result, &outbound[i])
	}
	for i := range inbound {
		result = append(result, &inbound[i])
	}
	return result, nil
}

func (s *ArticleStorage) CountLinks(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ArticleLink{}, badgerhold.Where("ID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return int(count), nil
}
