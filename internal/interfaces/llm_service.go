package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for language model operations including
// embeddings generation and chat completions. Implementations may use
// cloud-based APIs (Gemini, Claude) or a local Ollama instance.
type LLMService interface {
	// Embed generates an embedding vector for the given text. Providers
	// without embedding support return an error directing callers to a
	// provider that has it.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Chat generates a completion response based on the conversation
	// history. The messages slice should contain the full context in
	// chronological order, including system prompts.
	Chat(ctx context.Context, messages []Message) (string, error)

	// EmbedModel returns the model name used for embeddings, for
	// recording on stored vectors.
	EmbedModel() string

	// Provider returns the provider name ("ollama", "gemini", "claude")
	Provider() string

	// HealthCheck verifies the service is operational
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the provider client
	Close() error
}

// SummaryService generates article enrichment from raw content
type SummaryService interface {
	// Summarize produces the full enrichment for an article. Individual
	// generation failures fall back to placeholder defaults; the returned
	// error is non-nil only when nothing could be generated.
	Summarize(ctx context.Context, title, content string) (*SummaryOutput, error)
}

// SummaryOutput carries the generated enrichment fields
type SummaryOutput struct {
	ExecutiveSummary string
	FullSummary      string
	KeyPoints        []string
	Categories       []string
}
