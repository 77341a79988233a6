package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
)

// NewLLMService creates the configured LLM provider implementation
func NewLLMService(cfg *common.LLMConfig, logger arbor.ILogger) (interfaces.LLMService, error) {
	logger.Info().Str("provider", string(cfg.Provider)).Msg("Initializing LLM service")

	switch cfg.Provider {
	case common.LLMProviderOllama:
		return NewOllamaService(&cfg.Ollama, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, logger)
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider '%s': must be 'ollama', 'gemini' or 'claude'", cfg.Provider)
	}
}
