package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting the provider while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is the state of a CircuitBreaker.
type CircuitBreakerState int

// Breaker states.
const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the lower-case state name.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and lets a
// single trial request through once cooldown has elapsed. A successful
// trial closes it again; a failed trial reopens it.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// State returns the current state, moving an expired open breaker to
// half-open.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

func (cb *CircuitBreaker) refresh() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		cb.state = StateHalfOpen
		cb.probing = false
	}
}

// allow reports whether a request may proceed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	switch cb.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.state = StateClosed
		cb.failures = 0
		cb.probing = false
		return
	}
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.probing = false
	}
}

// Call runs fn through the breaker.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

type circuitBreakerLLM struct {
	next CoreLLM
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware fails fast once the provider keeps failing.
// Canceled requests do not count as provider failures.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb}
	}
}

func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var (
		response string
		in, out  int
		reqErr   error
	)
	err := c.cb.Call(func() error {
		response, in, out, reqErr = c.next.DoRequest(ctx, prompt, opts)
		if errors.Is(reqErr, context.Canceled) {
			return nil
		}
		return reqErr
	})
	if err == nil {
		err = reqErr
	}
	return response, in, out, err
}

func (c *circuitBreakerLLM) GetModel() string  { return c.next.GetModel() }
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
