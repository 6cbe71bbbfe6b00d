package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// pacedLLM spaces provider calls with a token bucket shared by every
// request through the middleware.
type pacedLLM struct {
	next     CoreLLM
	provider string
	limiter  *rate.Limiter
}

// RateLimitMiddleware paces calls to provider at limit requests per second
// with the given burst. A call whose slot lies past the context deadline is
// refused straight away with a rate limit ProviderError instead of sleeping
// into a certain timeout; the slot is handed back. Waits are recorded as
// "rate_limit_wait" events on the active span.
func RateLimitMiddleware(provider string, limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &pacedLLM{next: next, provider: provider, limiter: limiter}
	}
}

func (p *pacedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := p.awaitSlot(ctx); err != nil {
		return "", 0, 0, err
	}
	return p.next.DoRequest(ctx, prompt, opts)
}

func (p *pacedLLM) awaitSlot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := p.limiter.Reserve()
	if !res.OK() {
		return NewProviderError(p.provider, ErrorTypeRateLimit, 0, "request exceeds limiter burst", nil)
	}
	delay := res.Delay()
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		res.Cancel()
		return NewProviderError(p.provider, ErrorTypeRateLimit, 0,
			"next request slot in "+delay.Round(time.Millisecond).String()+" is past the deadline", nil)
	}

	trace.SpanFromContext(ctx).AddEvent("rate_limit_wait",
		trace.WithAttributes(attribute.Int64("llm.rate_limit.wait_ms", delay.Milliseconds())))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}

func (p *pacedLLM) GetModel() string  { return p.next.GetModel() }
func (p *pacedLLM) SetModel(m string) { p.next.SetModel(m) }
