package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func apiError(message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{"message": message, "type": "test_error"},
	}
}

// newTestProvider points a provider at server with fast retries
func newTestProvider(t *testing.T, server *httptest.Server) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(Config{
		Provider:       ProviderCustom,
		BaseURL:        server.URL + "/v1",
		Model:          "test-model",
		EmbeddingModel: "test-embed",
	}, NewCache(10))
	require.NoError(t, err)

	p.retry.BaseDelay = time.Millisecond
	p.retry.MaxDelay = 5 * time.Millisecond
	return p
}

func userRequest(content string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: content}}}
}

func TestComplete_Success(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer custom", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, chatReply(`{"questions":["Why?"]}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	resp, err := p.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "system prompt"},
			{Role: RoleUser, Content: "chunk text"},
		},
		JSON: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"questions":["Why?"]}`, resp.Content)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)
	assert.False(t, resp.Cached)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "chunk text", got.Messages[1].Content)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestComplete_Cache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, chatReply("cached answer"))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	ctx := context.Background()

	first, err := p.Complete(ctx, userRequest("same"))
	require.NoError(t, err)
	second, err := p.Complete(ctx, userRequest("same"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)

	// Different sampling parameters must not share an entry
	req := userRequest("same")
	req.Temperature = 0.1
	_, err = p.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusInternalServerError, apiError("overloaded"))
			return
		}
		writeJSON(w, http.StatusOK, chatReply("ok"))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	resp, err := p.Complete(context.Background(), userRequest("retry me"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, apiError("slow down"))
			return
		}
		writeJSON(w, http.StatusOK, chatReply("ok"))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Complete(context.Background(), userRequest("rate limited"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, apiError("bad request"))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Complete(context.Background(), userRequest("bad"))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrProviderFailed)
	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, apiError("down"))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Complete(context.Background(), userRequest("never"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxAttempts), calls.Load())
	assert.Equal(t, 0, p.cache.Size(), "failures are not cached")
}

func TestComplete_PerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	p.retry.Timeout = 20 * time.Millisecond
	p.retry.MaxAttempts = 2

	start := time.Now()
	_, err := p.Complete(context.Background(), userRequest("slow"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestComplete_CancelledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, apiError("unavailable"))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, userRequest("cancelled"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestComplete_EmptyChoices(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "x", "choices": []interface{}{}})
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Complete(context.Background(), userRequest("nothing"))
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, int32(1), calls.Load(), "empty replies are not retried")
}

func TestComplete_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [`))
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Complete(context.Background(), userRequest("garbled"))
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_InvalidRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid requests must not reach the server")
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEmbed_ReordersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		require.Len(t, req.Input, 2)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"object": "list",
			"model":  "test-embed",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server)
	vectors, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestEmbed_Validation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer server.Close()

	p := newTestProvider(t, server)

	_, err := p.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.Embed(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p.embeddingModel = ""
	_, err = p.Embed(context.Background(), []string{"ok"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestCountTokens(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	p := newTestProvider(t, server)
	assert.Equal(t, 0, p.CountTokens(""))
	assert.Greater(t, p.CountTokens("The quick brown fox jumps over the lazy dog."), 5)

	p.codec = nil
	assert.Equal(t, 3, p.CountTokens("hello world!"))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("机器"))
}

func TestProviderMetadata(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	p := newTestProvider(t, server)
	assert.Equal(t, ProviderCustom, p.Provider())
	assert.Equal(t, "test-model", p.Model())

	p.cache.Set("k", &Response{Content: "x"})
	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.cache.Size())
}
