package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderFailed      = errors.New("model provider failed")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrEmptyResponse       = errors.New("model returned no choices")
	ErrBatchTooLarge       = errors.New("batch size exceeds limit")
	ErrNoAPIKey            = errors.New("no API key configured")
)

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request. Zero Temperature and MaxTokens fall
// back to the client's configured defaults.
type Request struct {
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	JSON        bool      `json:"json,omitempty"` // ask for a JSON object reply
}

// Response is the first choice of a chat completion
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cached           bool
}

// Client talks to an OpenAI-compatible model API
type Client interface {
	// Complete runs a chat completion
	Complete(ctx context.Context, req Request) (*Response, error)

	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// CountTokens estimates the prompt size of text for this model
	CountTokens(text string) int

	// Provider returns the provider name
	Provider() string

	// Model returns the chat model name
	Model() string

	// Close releases any resources held by the client
	Close() error
}

// Cache provides in-memory LRU caching of completions by request hash
type Cache struct {
	cache *lru.Cache[string, Response]
}

// NewCache creates a new completion cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 1000
	}
	cache, err := lru.New[string, Response](maxLen)
	if err != nil {
		cache, _ = lru.New[string, Response](1000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get returns a copy of a cached response marked as Cached
func (c *Cache) Get(hash string) (*Response, bool) {
	resp, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

// Set stores a response; the LRU evicts the oldest entry when full
func (c *Cache) Set(hash string, resp *Response) {
	c.cache.Add(hash, *resp)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// RequestHash identifies a request for a given model, including sampling
// parameters, so that different settings never share a cache entry
func RequestHash(model string, req Request) string {
	data, err := json.Marshal(struct {
		Model string `json:"model"`
		Request
	}{model, req})
	if err != nil {
		// Request has no unmarshalable fields
		return ""
	}
	return ComputeHash(string(data))
}

// ValidateRequest validates a completion request
func ValidateRequest(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: no messages provided", ErrInvalidInput)
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidInput, i, msg.Role)
		}
		if msg.Content == "" {
			return fmt.Errorf("%w: message %d is empty", ErrInvalidInput, i)
		}
	}

	if req.Temperature < 0 || req.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f out of range [0, 2]", ErrInvalidInput, req.Temperature)
	}
	if req.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must not be negative", ErrInvalidInput)
	}

	return nil
}

// ValidateTexts validates an embedding batch
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}
