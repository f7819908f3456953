package llm

import (
	"sort"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
	ProviderCustom   = "custom"

	// Default models
	DefaultOpenAIModel          = "gpt-4o-mini"
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultDeepSeekModel        = "deepseek-chat"
	DefaultOllamaModel          = "llama3.1"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"

	// Base URLs
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	OllamaBaseURL   = "http://localhost:11434/v1"

	// Generation defaults
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	MaxAttempts      = 3
	InitialBackoffMs = 100
	MaxBackoffMs     = 5000
	DefaultTimeout   = 60 * time.Second
)

// ModelInfo describes a known model
type ModelInfo struct {
	Provider      string `json:"provider"`
	Name          string `json:"name"`
	ContextWindow int    `json:"context_window"`
	Embedding     bool   `json:"embedding"`
}

type preset struct {
	baseURL        string
	model          string
	embeddingModel string
	needsKey       bool
}

var presets = map[string]preset{
	ProviderOpenAI: {
		baseURL:        OpenAIBaseURL,
		model:          DefaultOpenAIModel,
		embeddingModel: DefaultOpenAIEmbeddingModel,
		needsKey:       true,
	},
	ProviderDeepSeek: {
		baseURL:  DeepSeekBaseURL,
		model:    DefaultDeepSeekModel,
		needsKey: true,
	},
	ProviderOllama: {
		baseURL:        OllamaBaseURL,
		model:          DefaultOllamaModel,
		embeddingModel: DefaultOllamaEmbeddingModel,
	},
	ProviderCustom: {},
}

var knownModels = []ModelInfo{
	{Provider: ProviderOpenAI, Name: "gpt-4o", ContextWindow: 128000},
	{Provider: ProviderOpenAI, Name: "gpt-4o-mini", ContextWindow: 128000},
	{Provider: ProviderOpenAI, Name: "gpt-4.1", ContextWindow: 1047576},
	{Provider: ProviderOpenAI, Name: "gpt-4.1-mini", ContextWindow: 1047576},
	{Provider: ProviderOpenAI, Name: "text-embedding-3-small", ContextWindow: 8191, Embedding: true},
	{Provider: ProviderOpenAI, Name: "text-embedding-3-large", ContextWindow: 8191, Embedding: true},
	{Provider: ProviderDeepSeek, Name: "deepseek-chat", ContextWindow: 64000},
	{Provider: ProviderDeepSeek, Name: "deepseek-reasoner", ContextWindow: 64000},
	{Provider: ProviderOllama, Name: "llama3.1", ContextWindow: 128000},
	{Provider: ProviderOllama, Name: "qwen2.5", ContextWindow: 32768},
	{Provider: ProviderOllama, Name: "nomic-embed-text", ContextWindow: 8192, Embedding: true},
}

// SupportedProviders returns the provider names accepted by New
func SupportedProviders() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportedModels lists the models known to work, optionally filtered by
// provider. Custom endpoints accept any model name.
func SupportedModels(provider string) []ModelInfo {
	provider = strings.ToLower(provider)

	var models []ModelInfo
	for _, m := range knownModels {
		if provider == "" || m.Provider == provider {
			models = append(models, m)
		}
	}
	return models
}

// LookupModel returns the known metadata for a model name
func LookupModel(name string) (ModelInfo, bool) {
	for _, m := range knownModels {
		if m.Name == name {
			return m, true
		}
	}
	return ModelInfo{}, false
}
