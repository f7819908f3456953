// Package llm talks to OpenAI-compatible chat and embedding APIs.
//
// One implementation, OpenAIProvider, covers OpenAI, DeepSeek, a local Ollama
// server or any other endpoint that speaks the same protocol. It adds retry
// with exponential backoff, a per-attempt timeout and an LRU response cache.
//
// # Basic Usage
//
//	client, err := llm.New(llm.Config{
//	    Provider: "deepseek",
//	    APIKey:   os.Getenv("DEEPSEEK_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Complete(ctx, llm.Request{
//	    Messages: []llm.Message{
//	        {Role: llm.RoleSystem, Content: "You write quiz questions."},
//	        {Role: llm.RoleUser, Content: chunk.Text},
//	    },
//	    JSON: true,
//	})
//
// # Provider Selection
//
// NewFromEnv selects a provider based on environment variables:
//
//  1. If TEXTFISSION_PROVIDER is set → use specified provider
//  2. Else if DEEPSEEK_API_KEY is set → use DeepSeek
//  3. Else if OPENAI_API_KEY or TEXTFISSION_API_KEY is set → use OpenAI
//  4. Else → a local Ollama server
//
// TEXTFISSION_BASE_URL and TEXTFISSION_MODEL override the preset endpoint
// and model.
//
// # Retries
//
// Each call makes at most MaxAttempts attempts, with delays of 100ms,
// 200ms, 400ms... capped at 5s. Transport errors, attempt timeouts, rate
// limits (429) and server errors are retried. Other 4xx responses and empty
// or undecodable replies fail immediately. Cancelling the caller's context
// stops retrying at once.
//
// # Caching
//
// Completions are cached by a SHA-256 of the model, messages and sampling
// parameters. Cached responses come back with Cached set. Embeddings are not
// cached.
package llm
