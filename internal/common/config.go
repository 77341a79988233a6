package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	LLM         LLMConfig       `toml:"llm"`
	Search      SearchConfig    `toml:"search"`
	Ingestion   IngestionConfig `toml:"ingestion"`
	Embeddings  EmbeddingConfig `toml:"embeddings"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	SMTP        SMTPConfig      `toml:"smtp"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// WebSocketConfig contains configuration for the live job update stream
type WebSocketConfig struct {
	HeartbeatInterval string `toml:"heartbeat_interval"` // Idle interval before a heartbeat frame is sent (default: "30s")
	// Throttle interval for high-frequency progress pushes. Empty disables throttling.
	// Example: "500ms" caps progress broadcasts at two per second per job.
	ProgressThrottle string `toml:"progress_throttle"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderOllama uses a local Ollama instance
	LLMProviderOllama LLMProvider = "ollama"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API (no embedding support)
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	Provider LLMProvider  `toml:"provider"` // "ollama", "gemini" or "claude" (default: "ollama")
	Ollama   OllamaConfig `toml:"ollama"`
	Gemini   GeminiConfig `toml:"gemini"`
	Claude   ClaudeConfig `toml:"claude"`
}

// OllamaConfig contains local Ollama instance configuration
type OllamaConfig struct {
	BaseURL     string  `toml:"base_url"`    // Ollama endpoint (default: "http://localhost:11434")
	Model       string  `toml:"model"`       // Chat model (default: "llama3.1:8b")
	EmbedModel  string  `toml:"embed_model"` // Embedding model (default: "nomic-embed-text")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Chat model (default: "gemini-2.0-flash")
	EmbedModel     string  `toml:"embed_model"`     // Embedding model (default: "gemini-embedding-001")
	EmbedDimension int     `toml:"embed_dimension"` // Output dimensionality (default: 768)
	Timeout        string  `toml:"timeout"`         // Operation timeout as duration string (default: "2m")
	Temperature    float32 `toml:"temperature"`     // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Chat model (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// SearchConfig contains configuration for external search providers
type SearchConfig struct {
	TavilyAPIKey   string `toml:"tavily_api_key"`  // Tavily web search API key
	YouTubeAPIKey  string `toml:"youtube_api_key"` // YouTube Data API v3 key
	RequestTimeout string `toml:"request_timeout"` // HTTP timeout for search calls (default: "30s")
	MaxResults     int    `toml:"max_results"`     // Default result cap per search (default: 5)
}

// IngestionConfig contains content acquisition limits
type IngestionConfig struct {
	UserAgent         string `toml:"user_agent"`          // User agent for page fetches
	RequestTimeout    string `toml:"request_timeout"`     // HTTP timeout for page fetches (default: "30s")
	MaxContentLength  int    `toml:"max_content_length"`  // Truncation cap for fetched content (default: 15000)
	MinWebContent     int    `toml:"min_web_content"`     // Content floor for web pages, chars (default: 200)
	MinFeedContent    int    `toml:"min_feed_content"`    // Content floor for feed entries and transcripts (default: 100)
	EnrichmentTimeout string `toml:"enrichment_timeout"`  // Timeout per enrichment call (default: "2m")
}

// EmbeddingConfig contains similarity linking parameters
type EmbeddingConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"` // Cosine similarity floor for links, inclusive (default: 0.75)
	BatchLimit          int     `toml:"batch_limit"`          // Max articles embedded per run (default: 100)
	MaxInputChars       int     `toml:"max_input_chars"`      // Truncation cap for embedding input (default: 8000)
}

// SchedulerConfig contains cron-driven background work configuration
type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`         // Enable scheduled feed refresh and digests
	FeedsFile      string `toml:"feeds_file"`      // YAML file listing feeds to refresh (default: "./feeds.yaml")
	FeedSchedule   string `toml:"feed_schedule"`   // Cron schedule for feed refresh (default: "0 */6 * * *")
	DigestSchedule string `toml:"digest_schedule"` // Cron schedule for digest email, empty disables
}

// SMTPConfig contains digest email delivery configuration
type SMTPConfig struct {
	Host       string   `toml:"host"`
	Port       int      `toml:"port"`
	Username   string   `toml:"username"`
	Password   string   `toml:"password"`
	From       string   `toml:"from"`
	FromName   string   `toml:"from_name"` // Display name on outgoing mail
	UseTLS     bool     `toml:"use_tls"`   // Direct TLS with STARTTLS fallback
	Recipients []string `toml:"recipients"` // Digest recipients
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in curio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		WebSocket: WebSocketConfig{
			HeartbeatInterval: "30s",
			ProgressThrottle:  "", // No throttling unless configured
		},
		LLM: LLMConfig{
			Provider: LLMProviderOllama,
			Ollama: OllamaConfig{
				BaseURL:     "http://localhost:11434",
				Model:       "llama3.1:8b",
				EmbedModel:  "nomic-embed-text",
				Timeout:     "2m",
				Temperature: 0.7,
			},
			Gemini: GeminiConfig{
				APIKey:         "",
				Model:          "gemini-2.0-flash",
				EmbedModel:     "gemini-embedding-001",
				EmbedDimension: 768,
				Timeout:        "2m",
				Temperature:    0.7,
			},
			Claude: ClaudeConfig{
				APIKey:      "",
				Model:       "claude-haiku-3-5-20241022",
				MaxTokens:   8192,
				Timeout:     "2m",
				Temperature: 0.7,
			},
		},
		Search: SearchConfig{
			RequestTimeout: "30s",
			MaxResults:     5,
		},
		Ingestion: IngestionConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:    "30s",
			MaxContentLength:  15000,
			MinWebContent:     200,
			MinFeedContent:    100,
			EnrichmentTimeout: "2m",
		},
		Embeddings: EmbeddingConfig{
			SimilarityThreshold: 0.75,
			BatchLimit:          100,
			MaxInputChars:       8000,
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			FeedsFile:    "./feeds.yaml",
			FeedSchedule: "0 */6 * * *",
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Curio",
			UseTLS:   true,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files. Priority: CLI flags > environment > last file > ... > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CURIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CURIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CURIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("CURIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("CURIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("CURIO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("CURIO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// WebSocket configuration
	if interval := os.Getenv("CURIO_WEBSOCKET_HEARTBEAT_INTERVAL"); interval != "" {
		if _, err := time.ParseDuration(interval); err == nil {
			config.WebSocket.HeartbeatInterval = interval
		}
	}
	if throttle := os.Getenv("CURIO_WEBSOCKET_PROGRESS_THROTTLE"); throttle != "" {
		if _, err := time.ParseDuration(throttle); err == nil {
			config.WebSocket.ProgressThrottle = throttle
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("CURIO_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(provider)
	}
	if baseURL := os.Getenv("CURIO_OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.Ollama.BaseURL = baseURL
	}
	if model := os.Getenv("CURIO_OLLAMA_MODEL"); model != "" {
		config.LLM.Ollama.Model = model
	}
	if embedModel := os.Getenv("CURIO_OLLAMA_EMBED_MODEL"); embedModel != "" {
		config.LLM.Ollama.EmbedModel = embedModel
	}
	if apiKey := os.Getenv("CURIO_GEMINI_API_KEY"); apiKey != "" {
		config.LLM.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("CURIO_GEMINI_MODEL"); model != "" {
		config.LLM.Gemini.Model = model
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.LLM.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("CURIO_CLAUDE_API_KEY"); apiKey != "" {
		config.LLM.Claude.APIKey = apiKey // CURIO_ prefix takes priority
	}
	if model := os.Getenv("CURIO_CLAUDE_MODEL"); model != "" {
		config.LLM.Claude.Model = model
	}

	// Search configuration
	if apiKey := os.Getenv("CURIO_TAVILY_API_KEY"); apiKey != "" {
		config.Search.TavilyAPIKey = apiKey
	} else if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
		config.Search.TavilyAPIKey = apiKey
	}
	if apiKey := os.Getenv("CURIO_YOUTUBE_API_KEY"); apiKey != "" {
		config.Search.YouTubeAPIKey = apiKey
	} else if apiKey := os.Getenv("YOUTUBE_API_KEY"); apiKey != "" {
		config.Search.YouTubeAPIKey = apiKey
	}
	if timeout := os.Getenv("CURIO_SEARCH_REQUEST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Search.RequestTimeout = timeout
		}
	}
	if maxResults := os.Getenv("CURIO_SEARCH_MAX_RESULTS"); maxResults != "" {
		if mr, err := strconv.Atoi(maxResults); err == nil {
			config.Search.MaxResults = mr
		}
	}

	// Ingestion configuration
	if userAgent := os.Getenv("CURIO_INGESTION_USER_AGENT"); userAgent != "" {
		config.Ingestion.UserAgent = userAgent
	}
	if timeout := os.Getenv("CURIO_INGESTION_REQUEST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Ingestion.RequestTimeout = timeout
		}
	}
	if maxLen := os.Getenv("CURIO_INGESTION_MAX_CONTENT_LENGTH"); maxLen != "" {
		if ml, err := strconv.Atoi(maxLen); err == nil {
			config.Ingestion.MaxContentLength = ml
		}
	}

	// Embeddings configuration
	if threshold := os.Getenv("CURIO_EMBEDDINGS_SIMILARITY_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Embeddings.SimilarityThreshold = t
		}
	}
	if batchLimit := os.Getenv("CURIO_EMBEDDINGS_BATCH_LIMIT"); batchLimit != "" {
		if bl, err := strconv.Atoi(batchLimit); err == nil {
			config.Embeddings.BatchLimit = bl
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("CURIO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if feedsFile := os.Getenv("CURIO_SCHEDULER_FEEDS_FILE"); feedsFile != "" {
		config.Scheduler.FeedsFile = feedsFile
	}

	// SMTP configuration
	if host := os.Getenv("CURIO_SMTP_HOST"); host != "" {
		config.SMTP.Host = host
	}
	if port := os.Getenv("CURIO_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.SMTP.Port = p
		}
	}
	if username := os.Getenv("CURIO_SMTP_USERNAME"); username != "" {
		config.SMTP.Username = username
	}
	if password := os.Getenv("CURIO_SMTP_PASSWORD"); password != "" {
		config.SMTP.Password = password
	}
	if from := os.Getenv("CURIO_SMTP_FROM"); from != "" {
		config.SMTP.From = from
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
