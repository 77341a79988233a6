package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google
// Gemini API for chat completions and embeddings.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	retry   *RetryConfig
	timeout time.Duration
}

// NewGeminiService creates a new Gemini LLM service instance
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set CURIO_GEMINI_API_KEY or llm.gemini.api_key in config)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		retry:   NewDefaultRetryConfig(),
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Str("embed_model", config.EmbedModel).
		Int("embed_dimension", config.EmbedDimension).
		Msg("Gemini service initialized")

	return service, nil
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format, pulling the first system message out for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}
	return contents, systemText, nil
}

// Chat generates a completion from the conversation history
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	var response string
	err = s.retry.Do(timeoutCtx, func() error {
		resp, genErr := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
		if genErr != nil {
			return genErr
		}

		var builder strings.Builder
		if resp != nil {
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					builder.WriteString(part.Text)
				}
				if builder.Len() > 0 {
					break
				}
			}
		}
		response = strings.TrimSpace(builder.String())
		if response == "" {
			return fmt.Errorf("no response generated from Gemini")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Gemini chat failed: %w", err)
	}
	return response, nil
}

// Embed generates an embedding vector for the given text
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outputDim := int32(s.config.EmbedDimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	var embedding []float32
	err := s.retry.Do(timeoutCtx, func() error {
		result, embedErr := s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
		if embedErr != nil {
			return embedErr
		}
		if result == nil || len(result.Embeddings) == 0 {
			return fmt.Errorf("no embedding returned from Gemini")
		}
		embedding = result.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding failed: %w", err)
	}

	if len(embedding) != s.config.EmbedDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.EmbedDimension, len(embedding))
	}
	return embedding, nil
}

// EmbedModel returns the configured embedding model name
func (s *GeminiService) EmbedModel() string {
	return s.config.EmbedModel
}

// Provider returns the provider name
func (s *GeminiService) Provider() string {
	return string(common.LLMProviderGemini)
}

// HealthCheck verifies the API key works with a minimal generation call
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model,
		genai.Text("ping"), &genai.GenerateContentConfig{MaxOutputTokens: 1})
	if err != nil {
		return fmt.Errorf("Gemini health check failed: %w", err)
	}
	return nil
}

// Close releases resources held by the client
func (s *GeminiService) Close() error {
	return nil
}
