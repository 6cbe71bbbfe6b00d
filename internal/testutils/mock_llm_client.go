package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/papernavigator/papernav/internal/ports"
)

var _ ports.LLMClient = (*MockLLMClient)(nil)

// MockLLMClient returns canned completions selected by substring match on
// the prompt. It records every prompt and option map it receives.
type MockLLMClient struct {
	mu sync.Mutex

	model     string
	responses []MockResponse
	// Default is returned when no pattern matches.
	Default string
	// Err, when set, is returned by every call.
	Err error
	// Sequence, when non-empty, is consumed one response per call before
	// pattern matching applies.
	Sequence []string

	prompts []string
	options []map[string]any
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched against prompts as a substring.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
}

// NewMockLLMClient creates a mock client reporting the given model name.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:   model,
		Default: `{"winner": "draw", "confidence": 0.5, "reasoning": "no preference"}`,
	}
}

// AddResponse registers a response pattern. Earlier patterns win.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, options)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Sequence) > 0 {
		next := m.Sequence[0]
		m.Sequence = m.Sequence[1:]
		return next, nil
	}
	for _, r := range m.responses {
		if strings.Contains(prompt, r.Pattern) {
			return r.Response, nil
		}
	}
	return m.Default, nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string { return m.model }

// Prompts returns every prompt received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastOptions returns the options of the most recent call.
func (m *MockLLMClient) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return nil
	}
	return m.options[len(m.options)-1]
}

// CallCount returns how many completions were requested.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
