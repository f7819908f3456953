package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read by NewFromEnv and DetectProvider
const (
	EnvProvider     = "TEXTFISSION_PROVIDER"
	EnvAPIKey       = "TEXTFISSION_API_KEY"
	EnvBaseURL      = "TEXTFISSION_BASE_URL"
	EnvModel        = "TEXTFISSION_MODEL"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvDeepSeekKey  = "DEEPSEEK_API_KEY"
	defaultCacheLen = 1000
)

// Config holds client configuration. Empty fields take the provider preset.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
	MaxAttempts    int
	CacheSize      int
}

// resolve fills empty fields from the provider preset and validates the result
func (c Config) resolve() (Config, error) {
	c.Provider = strings.ToLower(c.Provider)
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}

	p, ok := presets[c.Provider]
	if !ok {
		return c, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedProvider, c.Provider)
	}

	if c.BaseURL == "" {
		c.BaseURL = p.baseURL
	}
	if c.Model == "" {
		c.Model = p.model
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = p.embeddingModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}

	if c.BaseURL == "" {
		return c, fmt.Errorf("%w: %s provider requires a base URL", ErrInvalidInput, c.Provider)
	}
	if c.Model == "" {
		return c, fmt.Errorf("%w: %s provider requires a model name", ErrInvalidInput, c.Provider)
	}
	if p.needsKey && c.APIKey == "" {
		return c, fmt.Errorf("%w: %s provider requires an API key", ErrNoAPIKey, c.Provider)
	}
	if c.APIKey == "" {
		// go-openai always sends a bearer header; local servers ignore it
		c.APIKey = c.Provider
	}

	return c, nil
}

func (c Config) retryConfig() RetryConfig {
	rc := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		rc.MaxAttempts = c.MaxAttempts
	}
	if c.Timeout > 0 {
		rc.Timeout = c.Timeout
	}
	return rc
}

// New creates a client with explicit configuration
func New(cfg Config) (Client, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	return NewOpenAIProvider(cfg, cache)
}

// NewFromEnv creates a client based on environment variables
// Priority:
// 1. TEXTFISSION_PROVIDER (openai, deepseek, ollama, custom)
// 2. Check for API keys: DEEPSEEK_API_KEY, OPENAI_API_KEY
// 3. Default to a local ollama server if no API keys found
func NewFromEnv() (Client, error) {
	provider := DetectProvider()

	return New(Config{
		Provider:  provider,
		APIKey:    APIKeyFromEnv(provider),
		BaseURL:   os.Getenv(EnvBaseURL),
		Model:     os.Getenv(EnvModel),
		CacheSize: defaultCacheLen,
	})
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvDeepSeekKey) != "" {
		return ProviderDeepSeek
	}
	if os.Getenv(EnvOpenAIKey) != "" || os.Getenv(EnvAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderOllama
}

// APIKeyFromEnv returns TEXTFISSION_API_KEY, or the vendor key variable of
// provider when it is unset
func APIKeyFromEnv(provider string) string {
	if key := os.Getenv(EnvAPIKey); key != "" {
		return key
	}

	switch strings.ToLower(provider) {
	case ProviderDeepSeek:
		return os.Getenv(EnvDeepSeekKey)
	case ProviderOpenAI, ProviderCustom:
		return os.Getenv(EnvOpenAIKey)
	}
	return ""
}
