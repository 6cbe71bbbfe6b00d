package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errSimulated = errors.New("simulated failure")

// MockCoreLLM is a scriptable CoreLLM for middleware and judge tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response  string
	TokensIn  int
	TokensOut int
	Model     string
	// Error is returned on failing calls; a generic error is used when nil.
	Error error
	// FailUntilAttempt makes the first N calls fail.
	FailUntilAttempt int
	// AlwaysFail makes every call fail.
	AlwaysFail bool
	// ResponseDelay is waited before answering, honouring the context.
	ResponseDelay time.Duration

	callCount  int
	lastPrompt string
	lastOpts   map[string]any
}

// NewMockCoreLLM returns a mock that succeeds with "test response".
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.lastPrompt = prompt
	m.lastOpts = opts
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AlwaysFail || n <= m.FailUntilAttempt {
		if m.Error != nil {
			return "", 0, 0, m.Error
		}
		return "", 0, 0, errSimulated
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

// GetModel implements CoreLLM.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel implements CoreLLM.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// CallCount returns how many requests were made.
func (m *MockCoreLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the prompt of the most recent request.
func (m *MockCoreLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// LastOptions returns the options of the most recent request.
func (m *MockCoreLLM) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}
