package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic
// API. Claude has no embedding endpoint; Embed returns an error directing
// callers to ollama or gemini.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	retry     *RetryConfig
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude LLM service instance
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Claude API key is required (set ANTHROPIC_API_KEY, CURIO_CLAUDE_API_KEY or llm.claude.api_key in config)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		client:    client,
		retry:     NewDefaultRetryConfig(),
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", maxTokens).
		Msg("Claude service initialized")

	return service, nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude message
// params, pulling the first system message out for the System field
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	if len(claudeMessages) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}
	return claudeMessages, systemText, nil
}

// Chat generates a completion from the conversation history
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	var response string
	err = s.retry.Do(timeoutCtx, func() error {
		resp, callErr := s.client.Messages.New(timeoutCtx, params)
		if callErr != nil {
			return callErr
		}

		var builder strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				builder.WriteString(block.Text)
			}
		}
		response = strings.TrimSpace(builder.String())
		if response == "" {
			return fmt.Errorf("no response generated from Claude")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Claude chat failed: %w", err)
	}
	return response, nil
}

// Embed is unsupported for Claude
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("the claude provider has no embedding endpoint; configure llm.provider=ollama or llm.provider=gemini for embeddings")
}

// EmbedModel returns empty since Claude has no embedding model
func (s *ClaudeService) EmbedModel() string {
	return ""
}

// Provider returns the provider name
func (s *ClaudeService) Provider() string {
	return string(common.LLMProviderClaude)
}

// HealthCheck verifies the API key works with a minimal generation call
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := s.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Claude health check failed: %w", err)
	}
	return nil
}

// Close releases resources held by the provider client
func (s *ClaudeService) Close() error {
	return nil
}
