package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/interfaces"
)

// stubLLM answers chat calls by matching on the system prompt, so each
// of the four enrichment fields can be scripted independently.
type stubLLM struct {
	responses map[string]string
	failOn    map[string]bool
	failAll   bool
}

func (s *stubLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if s.failAll {
		return "", errors.New("provider unavailable")
	}
	system := messages[0].Content
	for key, response := range s.responses {
		if strings.Contains(system, key) {
			if s.failOn[key] {
				return "", errors.New("provider unavailable")
			}
			return response, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func (s *stubLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}
func (s *stubLLM) EmbedModel() string                    { return "" }
func (s *stubLLM) Provider() string                      { return "stub" }
func (s *stubLLM) HealthCheck(ctx context.Context) error { return nil }
func (s *stubLLM) Close() error                          { return nil }

func newStubLLM() *stubLLM {
	return &stubLLM{
		responses: map[string]string{
			"concisely":  "A short executive summary.",
			"accurately. Respond with the summary": "A longer detailed summary covering the article.",
			"key points": "First point\nSecond point\nThird point",
			"categorize": "Technology\nScience",
		},
		failOn: map[string]bool{},
	}
}

func newTestService(llm interfaces.LLMService) *Service {
	return NewService(llm, arbor.NewLogger())
}

func TestSummarizeAllFields(t *testing.T) {
	service := newTestService(newStubLLM())

	output, err := service.Summarize(context.Background(), "Test Article", "Some article content.")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if output.ExecutiveSummary != "A short executive summary." {
		t.Errorf("Unexpected executive summary: %q", output.ExecutiveSummary)
	}
	if !strings.Contains(output.FullSummary, "detailed summary") {
		t.Errorf("Unexpected full summary: %q", output.FullSummary)
	}
	if len(output.KeyPoints) != 3 {
		t.Errorf("Expected 3 key points, got %d", len(output.KeyPoints))
	}
	if len(output.Categories) != 2 {
		t.Errorf("Expected 2 categories, got %d", len(output.Categories))
	}
}

func TestSummarizePartialFailureUsesFallbacks(t *testing.T) {
	llm := newStubLLM()
	llm.failOn["key points"] = true
	llm.failOn["categorize"] = true
	service := newTestService(llm)

	output, err := service.Summarize(context.Background(), "Test Article", "Some article content.")
	if err != nil {
		t.Fatalf("Expected partial success, got error: %v", err)
	}

	if output.ExecutiveSummary != "A short executive summary." {
		t.Errorf("Executive summary should survive partial failure, got %q", output.ExecutiveSummary)
	}
	if len(output.KeyPoints) != 1 || output.KeyPoints[0] != "Summary not available" {
		t.Errorf("Expected key points fallback, got %v", output.KeyPoints)
	}
	if len(output.Categories) != 1 || output.Categories[0] != "Uncategorized" {
		t.Errorf("Expected categories fallback, got %v", output.Categories)
	}
}

func TestSummarizeTotalFailure(t *testing.T) {
	service := newTestService(&stubLLM{failAll: true})

	_, err := service.Summarize(context.Background(), "Test Article", "Some article content.")
	if err == nil {
		t.Fatal("Expected error when all enrichment calls fail")
	}
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxEntries int
		maxLen     int
		want       []string
	}{
		{
			name:       "numbered list",
			input:      "1. First point\n2. Second point",
			maxEntries: 7,
			want:       []string{"First point", "Second point"},
		},
		{
			name:       "bulleted list",
			input:      "- Alpha\n* Beta\n\n- Gamma",
			maxEntries: 7,
			want:       []string{"Alpha", "Beta", "Gamma"},
		},
		{
			name:       "entry cap",
			input:      "a\nb\nc\nd",
			maxEntries: 2,
			want:       []string{"a", "b"},
		},
		{
			name:       "length cap drops long lines",
			input:      "Technology\n" + strings.Repeat("x", 80),
			maxEntries: 3,
			maxLen:     50,
			want:       []string{"Technology"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLines(tt.input, tt.maxEntries, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Fatalf("parseLines = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
