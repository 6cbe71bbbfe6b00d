package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware repeats failed requests up to maxRetries times with
// exponential backoff and +/-25% jitter, capped at maxDelay. Failures that
// IsRetryable rejects are returned immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		response, in, out, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, in, out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}
	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (r *retryLLM) backoff(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := r.baseDelay << attempt
	// #nosec G404 -- jitter does not need a cryptographic source
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay - delay/4 + jitter
	if r.maxDelay > 0 && delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func (r *retryLLM) GetModel() string  { return r.next.GetModel() }
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
