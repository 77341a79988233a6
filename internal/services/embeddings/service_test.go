package embeddings

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/storage/badger"
)

// stubLLM returns a scripted vector per article title
type stubLLM struct {
	vectors map[string][]float32
	failAll bool
}

func (s *stubLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failAll {
		return nil, errors.New("provider unavailable")
	}
	for key, vector := range s.vectors {
		if len(text) >= len(key) && text[:len(key)] == key {
			return vector, nil
		}
	}
	return nil, errors.New("no scripted vector")
}

func (s *stubLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", errors.New("not implemented")
}
func (s *stubLLM) EmbedModel() string                    { return "stub-embed" }
func (s *stubLLM) Provider() string                      { return "stub" }
func (s *stubLLM) HealthCheck(ctx context.Context) error { return nil }
func (s *stubLLM) Close() error                          { return nil }

func newTestStorage(t *testing.T) interfaces.ArticleStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return badger.NewArticleStorage(db, logger)
}

func testEmbeddingConfig() *common.EmbeddingConfig {
	return &common.EmbeddingConfig{
		SimilarityThreshold: 0.75,
		BatchLimit:          100,
		MaxInputChars:       8000,
	}
}

func saveArticle(t *testing.T, storage interfaces.ArticleStorage, title, url string) *models.Article {
	t.Helper()
	article := models.NewArticle(title, url, models.SourceTypeWebSearch, "test", "Body content for "+title)
	if err := storage.SaveArticle(context.Background(), article); err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}
	return article
}

func saveEmbedded(t *testing.T, storage interfaces.ArticleStorage, title, url string, vector []float32) *models.Article {
	t.Helper()
	article := saveArticle(t, storage, title, url)
	article.Embedding = &models.Embedding{Vector: vector, Model: "stub-embed"}
	if err := storage.SaveArticle(context.Background(), article); err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}
	return article
}

func TestEmbedMissingGeneratesVectors(t *testing.T) {
	storage := newTestStorage(t)
	saveArticle(t, storage, "Alpha", "https://example.com/alpha")
	saveArticle(t, storage, "Beta", "https://example.com/beta")

	llm := &stubLLM{vectors: map[string][]float32{
		"Alpha": {1, 0, 0},
		"Beta":  {0, 1, 0},
	}}
	service := NewService(storage, llm, testEmbeddingConfig(), arbor.NewLogger())

	generated, err := service.EmbedMissing(context.Background(), 0)
	if err != nil {
		t.Fatalf("EmbedMissing failed: %v", err)
	}
	if generated != 2 {
		t.Errorf("Expected 2 embeddings generated, got %d", generated)
	}

	count, err := storage.CountArticlesWithEmbedding(context.Background())
	if err != nil {
		t.Fatalf("CountArticlesWithEmbedding failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 embedded articles persisted, got %d", count)
	}
}

func TestEmbedMissingSkipsFailures(t *testing.T) {
	storage := newTestStorage(t)
	saveArticle(t, storage, "Alpha", "https://example.com/alpha")
	saveArticle(t, storage, "Unknown", "https://example.com/unknown")

	llm := &stubLLM{vectors: map[string][]float32{
		"Alpha": {1, 0, 0},
	}}
	service := NewService(storage, llm, testEmbeddingConfig(), arbor.NewLogger())

	generated, err := service.EmbedMissing(context.Background(), 0)
	if err != nil {
		t.Fatalf("EmbedMissing failed: %v", err)
	}
	if generated != 1 {
		t.Errorf("Expected 1 embedding despite one failure, got %d", generated)
	}
}

func TestEmbedMissingNothingPending(t *testing.T) {
	storage := newTestStorage(t)
	service := NewService(storage, &stubLLM{}, testEmbeddingConfig(), arbor.NewLogger())

	generated, err := service.EmbedMissing(context.Background(), 0)
	if err != nil {
		t.Fatalf("EmbedMissing failed: %v", err)
	}
	if generated != 0 {
		t.Errorf("Expected 0 embeddings for empty store, got %d", generated)
	}
}

func TestComputeLinksCreatesAboveThreshold(t *testing.T) {
	storage := newTestStorage(t)
	a := saveEmbedded(t, storage, "Alpha", "https://example.com/alpha", []float32{1, 0, 0})
	saveEmbedded(t, storage, "AlphaTwin", "https://example.com/twin", []float32{0.99, 0.1, 0})
	saveEmbedded(t, storage, "Orthogonal", "https://example.com/ortho", []float32{0, 1, 0})

	service := NewService(storage, &stubLLM{}, testEmbeddingConfig(), arbor.NewLogger())

	created, err := service.ComputeLinks(context.Background(), 0.75)
	if err != nil {
		t.Fatalf("ComputeLinks failed: %v", err)
	}
	if created != 1 {
		t.Errorf("Expected 1 link (alpha-twin), got %d", created)
	}

	links, err := storage.ListLinksForArticle(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("ListLinksForArticle failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("Expected 1 link for alpha, got %d", len(links))
	}
	if links[0].SimilarityScore < 0.75 {
		t.Errorf("Link score %f below threshold", links[0].SimilarityScore)
	}
	if links[0].LinkType != models.LinkTypeSemantic {
		t.Errorf("Unexpected link type: %s", links[0].LinkType)
	}
}

func TestComputeLinksThresholdInclusive(t *testing.T) {
	storage := newTestStorage(t)
	// Identical vectors give similarity exactly 1.0
	saveEmbedded(t, storage, "One", "https://example.com/one", []float32{1, 1, 0})
	saveEmbedded(t, storage, "Two", "https://example.com/two", []float32{1, 1, 0})

	service := NewService(storage, &stubLLM{}, testEmbeddingConfig(), arbor.NewLogger())

	created, err := service.ComputeLinks(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("ComputeLinks failed: %v", err)
	}
	if created != 1 {
		t.Errorf("Score equal to threshold should link, got %d links", created)
	}
}

func TestComputeLinksNeverDuplicates(t *testing.T) {
	storage := newTestStorage(t)
	saveEmbedded(t, storage, "One", "https://example.com/one", []float32{1, 0, 0})
	saveEmbedded(t, storage, "Two", "https://example.com/two", []float32{1, 0.01, 0})

	service := NewService(storage, &stubLLM{}, testEmbeddingConfig(), arbor.NewLogger())

	first, err := service.ComputeLinks(context.Background(), 0.75)
	if err != nil {
		t.Fatalf("First ComputeLinks failed: %v", err)
	}
	if first != 1 {
		t.Fatalf("Expected 1 link on first run, got %d", first)
	}

	second, err := service.ComputeLinks(context.Background(), 0.75)
	if err != nil {
		t.Fatalf("Second ComputeLinks failed: %v", err)
	}
	if second != 0 {
		t.Errorf("Expected no new links on rerun, got %d", second)
	}

	total, err := storage.CountLinks(context.Background())
	if err != nil {
		t.Fatalf("CountLinks failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 stored link, got %d", total)
	}
}

func TestComputeLinksFewerThanTwoArticles(t *testing.T) {
	storage := newTestStorage(t)
	saveEmbedded(t, storage, "Lonely", "https://example.com/lonely", []float32{1, 0, 0})

	service := NewService(storage, &stubLLM{}, testEmbeddingConfig(), arbor.NewLogger())

	created, err := service.ComputeLinks(context.Background(), 0.75)
	if err != nil {
		t.Fatalf("ComputeLinks failed: %v", err)
	}
	if created != 0 {
		t.Errorf("Expected no links with one article, got %d", created)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0, false},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0, false},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0, true},
		{"empty", []float32{}, []float32{}, 0, true},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}
