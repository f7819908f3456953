package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxAttempts int           // Total calls including the first; 0 and 1 both mean a single try
	BaseDelay   time.Duration // Initial delay between attempts, doubled each time
	MaxDelay    time.Duration // Maximum delay between attempts
	Timeout     time.Duration // Per-attempt timeout, zero for none
}

// DefaultRetryConfig returns sensible defaults for API retry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: MaxAttempts,
		BaseDelay:   time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:    time.Duration(MaxBackoffMs) * time.Millisecond,
		Timeout:     DefaultTimeout,
	}
}

// retryWithBackoff runs fn until it succeeds, fails permanently or runs out
// of attempts. Each attempt gets its own timeout derived from ctx; retry
// stops as soon as ctx itself is done.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return retry.DoWithData(func() (T, error) {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		}
		defer cancel()

		return fn(attemptCtx)
	},
		retry.Attempts(uint(attempts)),
		retry.Delay(config.BaseDelay),
		retry.MaxDelay(config.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && isRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().
				Err(err).
				Uint("attempt", n+1).
				Msg("retrying model request")
		}),
	)
}

// isRetryable reports whether err is worth another attempt. Only transport
// failures, attempt timeouts, 429 and 5xx responses qualify.
func isRetryable(err error) bool {
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
