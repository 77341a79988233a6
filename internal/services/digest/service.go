// -----------------------------------------------------------------------
// Digest Service - periodic email summary of recently curated articles
// -----------------------------------------------------------------------

package digest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Default article cap per digest email
const defaultDigestLimit = 20

// Service composes a markdown digest of recently curated articles and
// mails it to the configured recipients as rendered HTML.
type Service struct {
	articles interfaces.ArticleStorage
	mail     interfaces.MailService
	config   *common.SMTPConfig
	logger   arbor.ILogger
	renderer goldmark.Markdown
}

// NewService creates a new digest service
func NewService(articles interfaces.ArticleStorage, mail interfaces.MailService, config *common.SMTPConfig, logger arbor.ILogger) *Service {
	return &Service{
		articles: articles,
		mail:     mail,
		config:   config,
		logger:   logger,
		renderer: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		),
	}
}

// SendDigest composes the digest from articles created within the window
// and delivers it to every configured recipient. Returns the number of
// articles included.
func (s *Service) SendDigest(ctx context.Context, window time.Duration) (int, error) {
	if len(s.config.Recipients) == 0 {
		return 0, fmt.Errorf("no digest recipients configured (set smtp.recipients)")
	}

	articles, err := s.recentArticles(ctx, window)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		s.logger.Info().Msg("No new articles, skipping digest")
		return 0, nil
	}

	markdown := s.Compose(articles, window)
	html, err := s.renderHTML(markdown)
	if err != nil {
		return 0, fmt.Errorf("failed to render digest: %w", err)
	}

	subject := fmt.Sprintf("Curio Digest: %d new articles", len(articles))
	var failed int
	for _, recipient := range s.config.Recipients {
		if err := s.mail.Send(ctx, recipient, subject, html, markdown); err != nil {
			s.logger.Error().Err(err).Str("recipient", recipient).Msg("Digest delivery failed")
			failed++
		}
	}
	if failed == len(s.config.Recipients) {
		return 0, fmt.Errorf("digest delivery failed for all %d recipients", failed)
	}

	s.logger.Info().
		Int("articles", len(articles)).
		Int("recipients", len(s.config.Recipients)-failed).
		Msg("Digest sent")

	return len(articles), nil
}

// recentArticles returns articles created within the window, newest
// first, capped to the digest limit
func (s *Service) recentArticles(ctx context.Context, window time.Duration) ([]*models.Article, error) {
	all, err := s.articles.ListArticles(ctx, &interfaces.ArticleListOptions{Limit: defaultDigestLimit * 2})
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	cutoff := time.Now().UTC().Add(-window)
	var recent []*models.Article
	for _, article := range all {
		if article.CreatedAt.Before(cutoff) {
			continue
		}
		recent = append(recent, article)
		if len(recent) >= defaultDigestLimit {
			break
		}
	}
	return recent, nil
}

// Compose builds the digest body as markdown
func (s *Service) Compose(articles []*models.Article, window time.Duration) string {
	var doc strings.Builder
	doc.WriteString("# Curio Digest\n\n")
	doc.WriteString(fmt.Sprintf("%d new articles in the last %s.\n\n", len(articles), formatWindow(window)))

	for _, article := range articles {
		doc.WriteString(fmt.Sprintf("## [%s](%s)\n\n", article.Title, article.URL))

		meta := []string{string(article.SourceType)}
		if article.SourceName != "" {
			meta = append(meta, article.SourceName)
		}
		if article.Summary != nil && len(article.Summary.Categories) > 0 {
			meta = append(meta, strings.Join(article.Summary.Categories, ", "))
		}
		doc.WriteString("*" + strings.Join(meta, " | ") + "*\n\n")

		if article.Summary != nil && article.Summary.ExecutiveSummary != "" {
			doc.WriteString(article.Summary.ExecutiveSummary + "\n\n")
		}
	}

	return doc.String()
}

func (s *Service) renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.renderer.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatWindow(window time.Duration) string {
	if window >= 24*time.Hour {
		days := int(window.Hours() / 24)
		if days == 1 {
			return "day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(window.Hours())
	if hours == 1 {
		return "hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
