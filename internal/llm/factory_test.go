package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvProvider, EnvAPIKey, EnvBaseURL, EnvModel, EnvOpenAIKey, EnvDeepSeekKey} {
		t.Setenv(key, "")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{"explicit provider", map[string]string{EnvProvider: "DeepSeek"}, ProviderDeepSeek},
		{"explicit wins over keys", map[string]string{EnvProvider: "ollama", EnvOpenAIKey: "k"}, ProviderOllama},
		{"deepseek key", map[string]string{EnvDeepSeekKey: "k"}, ProviderDeepSeek},
		{"deepseek before openai", map[string]string{EnvDeepSeekKey: "k", EnvOpenAIKey: "k"}, ProviderDeepSeek},
		{"openai key", map[string]string{EnvOpenAIKey: "k"}, ProviderOpenAI},
		{"generic key", map[string]string{EnvAPIKey: "k"}, ProviderOpenAI},
		{"nothing set", nil, ProviderOllama},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, DetectProvider())
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("presets", func(t *testing.T) {
		client, err := New(Config{Provider: "deepseek", APIKey: "k"})
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, ProviderDeepSeek, client.Provider())
		assert.Equal(t, DefaultDeepSeekModel, client.Model())
	})

	t.Run("model override", func(t *testing.T) {
		client, err := New(Config{Provider: "openai", APIKey: "k", Model: "gpt-4o"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", client.Model())
	})

	t.Run("default provider", func(t *testing.T) {
		client, err := New(Config{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, client.Provider())
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		client, err := New(Config{Provider: "ollama"})
		require.NoError(t, err)
		assert.Equal(t, DefaultOllamaModel, client.Model())
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := New(Config{Provider: "openai"})
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "anthropic"})
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})

	t.Run("custom needs base url and model", func(t *testing.T) {
		_, err := New(Config{Provider: "custom"})
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = New(Config{Provider: "custom", BaseURL: "http://localhost:8000/v1"})
		assert.ErrorIs(t, err, ErrInvalidInput)

		client, err := New(Config{Provider: "custom", BaseURL: "http://localhost:8000/v1", Model: "qwen"})
		require.NoError(t, err)
		assert.Equal(t, "qwen", client.Model())
	})

	t.Run("cache only when sized", func(t *testing.T) {
		client, err := New(Config{Provider: "ollama"})
		require.NoError(t, err)
		assert.Nil(t, client.(*OpenAIProvider).cache)

		client, err = New(Config{Provider: "ollama", CacheSize: 5})
		require.NoError(t, err)
		assert.NotNil(t, client.(*OpenAIProvider).cache)
	})
}

func TestConfigRetry(t *testing.T) {
	rc := Config{}.retryConfig()
	assert.Equal(t, DefaultRetryConfig(), rc)

	rc = Config{MaxAttempts: 5, Timeout: 3 * time.Second}.retryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 3*time.Second, rc.Timeout)
}

func TestNewFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDeepSeekKey, "ds-key")
	t.Setenv(EnvModel, "deepseek-reasoner")

	client, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderDeepSeek, client.Provider())
	assert.Equal(t, "deepseek-reasoner", client.Model())

	clearEnv(t)
	t.Setenv(EnvProvider, "openai")
	_, err = NewFromEnv()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAPIKeyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIKey, "oa")
	t.Setenv(EnvDeepSeekKey, "ds")

	assert.Equal(t, "oa", APIKeyFromEnv("openai"))
	assert.Equal(t, "oa", APIKeyFromEnv("custom"))
	assert.Equal(t, "ds", APIKeyFromEnv("DeepSeek"))
	assert.Empty(t, APIKeyFromEnv("ollama"))

	t.Setenv(EnvAPIKey, "generic")
	assert.Equal(t, "generic", APIKeyFromEnv("deepseek"))
}

func TestSupportedModels(t *testing.T) {
	all := SupportedModels("")
	assert.NotEmpty(t, all)

	for _, m := range SupportedModels("DEEPSEEK") {
		assert.Equal(t, ProviderDeepSeek, m.Provider)
	}
	assert.Empty(t, SupportedModels("custom"))

	info, ok := LookupModel("text-embedding-3-small")
	require.True(t, ok)
	assert.True(t, info.Embedding)

	_, ok = LookupModel("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"custom", "deepseek", "ollama", "openai"}, SupportedProviders())
}
