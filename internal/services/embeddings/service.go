// -----------------------------------------------------------------------
// Embeddings Service - vector generation and semantic linking
// -----------------------------------------------------------------------

package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
)

// Service generates embeddings for stored articles and derives semantic
// similarity links between them.
type Service struct {
	articles interfaces.ArticleStorage
	llm      interfaces.LLMService
	config   *common.EmbeddingConfig
	logger   arbor.ILogger
}

// NewService creates a new embeddings service
func NewService(articles interfaces.ArticleStorage, llm interfaces.LLMService, config *common.EmbeddingConfig, logger arbor.ILogger) *Service {
	return &Service{
		articles: articles,
		llm:      llm,
		config:   config,
		logger:   logger,
	}
}

// EmbedMissing generates embeddings for articles that have none, up to
// limit. Per-article failures are logged and skipped; the run continues.
// Returns the number of embeddings generated.
func (s *Service) EmbedMissing(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = s.config.BatchLimit
	}

	pending, err := s.articles.ListArticlesWithoutEmbedding(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list articles without embedding: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	s.logger.Info().Int("pending", len(pending)).Msg("Generating embeddings")

	generated := 0
	for _, article := range pending {
		if ctx.Err() != nil {
			break
		}

		if err := s.embedArticle(ctx, article); err != nil {
			s.logger.Warn().Err(err).
				Str("article_id", article.ID).
				Msg("Embedding generation failed, skipping article")
			continue
		}
		generated++
	}

	return generated, nil
}

// embedArticle builds the embedding input from title and summary, falls
// back to raw content, and persists the vector
func (s *Service) embedArticle(ctx context.Context, article *models.Article) error {
	text := s.embeddingInput(article)
	if text == "" {
		return fmt.Errorf("article has no text to embed")
	}

	vector, err := s.llm.Embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("provider returned empty embedding")
	}

	article.Embedding = &models.Embedding{
		Vector:      vector,
		Model:       s.llm.EmbedModel(),
		GeneratedAt: time.Now().UTC(),
	}
	article.UpdatedAt = time.Now().UTC()

	if err := s.articles.SaveArticle(ctx, article); err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}

	s.logger.Debug().
		Str("article_id", article.ID).
		Int("dimension", len(vector)).
		Msg("Embedding generated")

	return nil
}

// embeddingInput prefers the enriched summary over raw content, capped
// to the configured input size
func (s *Service) embeddingInput(article *models.Article) string {
	var builder strings.Builder
	builder.WriteString(article.Title)

	if article.Summary != nil && article.Summary.FullSummary != "" {
		builder.WriteString("\n\n")
		builder.WriteString(article.Summary.FullSummary)
	} else if article.Content != "" {
		builder.WriteString("\n\n")
		builder.WriteString(article.Content)
	}

	text := strings.TrimSpace(builder.String())
	if s.config.MaxInputChars > 0 && len(text) > s.config.MaxInputChars {
		text = text[:s.config.MaxInputChars]
	}
	return text
}

// ComputeLinks compares every embedded article pair and stores a semantic
// link where cosine similarity meets the threshold. Existing links are
// never duplicated regardless of pair orientation. Returns the number of
// links created.
func (s *Service) ComputeLinks(ctx context.Context, threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = s.config.SimilarityThreshold
	}

	embedded, err := s.articles.ListArticlesWithEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list embedded articles: %w", err)
	}
	if len(embedded) < 2 {
		return 0, nil
	}

	s.logger.Info().
		Int("articles", len(embedded)).
		Float64("threshold", threshold).
		Msg("Computing similarity links")

	created := 0
	for i := 0; i < len(embedded); i++ {
		for j := i + 1; j < len(embedded); j++ {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}

			a, b := embedded[i], embedded[j]
			score, err := CosineSimilarity(a.Embedding.Vector, b.Embedding.Vector)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("source_id", a.ID).
					Str("target_id", b.ID).
					Msg("Similarity computation failed, skipping pair")
				continue
			}
			if score < threshold {
				continue
			}

			exists, err := s.articles.LinkExists(ctx, a.ID, b.ID)
			if err != nil {
				return created, fmt.Errorf("link lookup failed: %w", err)
			}
			if exists {
				continue
			}

			link := models.NewArticleLink(a.ID, b.ID, score)
			if err := s.articles.SaveLink(ctx, link); err != nil {
				return created, fmt.Errorf("failed to save link: %w", err)
			}
			created++
		}
	}

	s.logger.Info().Int("links_created", created).Msg("Similarity linking completed")
	return created, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Vectors must share a dimension and have non-zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("vectors must have non-zero magnitude")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
