package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// attemptDeadlineLLM gives each provider call its own deadline. It sits
// below retries so an overrun attempt can be repeated while the caller's
// context still has time left.
type attemptDeadlineLLM struct {
	next     CoreLLM
	provider string
	limit    time.Duration
}

// TimeoutMiddleware caps a single provider attempt at limit. An attempt that
// runs out its own deadline fails with a timeout ProviderError, which
// matches ports.ErrTimeout and is retryable. When the caller's context ends
// first its error is returned unchanged. A non-positive limit disables the
// cap.
func TimeoutMiddleware(provider string, limit time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &attemptDeadlineLLM{next: next, provider: provider, limit: limit}
	}
}

func (a *attemptDeadlineLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if a.limit <= 0 {
		return a.next.DoRequest(ctx, prompt, opts)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, a.limit)
	defer cancel()

	out, in, outTok, err := a.next.DoRequest(attemptCtx, prompt, opts)
	if err == nil || ctx.Err() != nil {
		return out, in, outTok, err
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Type == ErrorTypeTimeout {
			return "", 0, 0, err
		}
		msg := fmt.Sprintf("%s attempt exceeded %s", a.next.GetModel(), a.limit)
		return "", 0, 0, NewProviderError(a.provider, ErrorTypeTimeout, 0, msg, err)
	}
	return out, in, outTok, err
}

func (a *attemptDeadlineLLM) GetModel() string  { return a.next.GetModel() }
func (a *attemptDeadlineLLM) SetModel(m string) { a.next.SetModel(m) }
