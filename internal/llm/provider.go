package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tiktoken-go/tokenizer"
)

// OpenAIProvider implements Client against any OpenAI-compatible endpoint
type OpenAIProvider struct {
	client         *openai.Client
	provider       string
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	retry          RetryConfig
	cache          *Cache
	codec          tokenizer.Codec
}

// NewOpenAIProvider creates a client from a resolved configuration. cache may
// be nil to disable response caching.
func NewOpenAIProvider(cfg Config, cache *Cache) (*OpenAIProvider, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// CountTokens falls back to a character heuristic
		log.Debug().Err(err).Msg("tokenizer unavailable")
		codec = nil
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(apiCfg),
		provider:       cfg.Provider,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		retry:          cfg.retryConfig(),
		cache:          cache,
		codec:          codec,
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	if req.Temperature == 0 {
		req.Temperature = p.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = p.maxTokens
	}

	hash := RequestHash(p.model, req)
	if p.cache != nil {
		if resp, ok := p.cache.Get(hash); ok {
			return resp, nil
		}
	}

	resp, err := retryWithBackoff(ctx, p.retry, func(ctx context.Context) (*Response, error) {
		return p.callChat(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	if p.cache != nil {
		p.cache.Set(hash, resp)
	}

	return resp, nil
}

func (p *OpenAIProvider) callChat(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	if p.embeddingModel == "" {
		return nil, fmt.Errorf("%w: %s has no embedding model configured", ErrUnsupportedProvider, p.provider)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))

		batch, err := retryWithBackoff(ctx, p.retry, func(ctx context.Context) ([][]float32, error) {
			return p.callEmbeddings(ctx, texts[start:end])
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (p *OpenAIProvider) callEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// Data may arrive in any order; Index is authoritative
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

// CountTokens returns the cl100k token count of text, or a chars/4 estimate
// when the tokenizer is unavailable
func (p *OpenAIProvider) CountTokens(text string) int {
	if p.codec != nil {
		ids, _, err := p.codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return EstimateTokens(text)
}

func (p *OpenAIProvider) Provider() string {
	return p.provider
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Close() error {
	if p.cache != nil {
		p.cache.Clear()
	}
	return nil
}

// EstimateTokens approximates a token count as one token per four characters
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
