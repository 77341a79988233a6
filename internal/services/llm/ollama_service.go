package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
)

// OllamaService implements the LLMService interface against a local
// Ollama instance over its HTTP API.
type OllamaService struct {
	config  *common.OllamaConfig
	logger  arbor.ILogger
	client  *http.Client
	retry   *RetryConfig
	timeout time.Duration
}

// NewOllamaService creates a new Ollama LLM service instance
func NewOllamaService(config *common.OllamaConfig, logger arbor.ILogger) (*OllamaService, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("Ollama base URL is required")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	service := &OllamaService{
		config:  config,
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		retry:   NewDefaultRetryConfig(),
		timeout: timeout,
	}

	logger.Debug().
		Str("base_url", config.BaseURL).
		Str("model", config.Model).
		Str("embed_model", config.EmbedModel).
		Msg("Ollama service initialized")

	return service, nil
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Chat generates a completion from the conversation history
func (s *OllamaService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	chatMessages := make([]ollamaChatMessage, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}

	reqBody := ollamaChatRequest{
		Model:    s.config.Model,
		Messages: chatMessages,
		Stream:   false,
		Options:  map[string]any{"temperature": s.config.Temperature},
	}

	var response ollamaChatResponse
	err := s.retry.Do(ctx, func() error {
		return s.post(ctx, "/api/chat", reqBody, &response)
	})
	if err != nil {
		return "", fmt.Errorf("Ollama chat failed: %w", err)
	}

	content := strings.TrimSpace(response.Message.Content)
	if content == "" {
		return "", fmt.Errorf("no response generated from Ollama")
	}
	return content, nil
}

// Embed generates an embedding vector for the given text
func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	reqBody := ollamaEmbedRequest{
		Model:  s.config.EmbedModel,
		Prompt: text,
	}

	var response ollamaEmbedResponse
	err := s.retry.Do(ctx, func() error {
		return s.post(ctx, "/api/embeddings", reqBody, &response)
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama embedding failed: %w", err)
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned from Ollama")
	}

	vector := make([]float32, len(response.Embedding))
	for i, v := range response.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// EmbedModel returns the configured embedding model name
func (s *OllamaService) EmbedModel() string {
	return s.config.EmbedModel
}

// Provider returns the provider name
func (s *OllamaService) Provider() string {
	return string(common.LLMProviderOllama)
}

// HealthCheck verifies the Ollama instance is reachable
func (s *OllamaService) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to build health check request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama is unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Close releases resources held by the client
func (s *OllamaService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// post sends a JSON request and decodes the JSON response
func (s *OllamaService) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
