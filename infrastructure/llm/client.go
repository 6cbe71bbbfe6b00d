// Package llm talks to hosted language models on behalf of the relevance
// judge. Every provider (OpenAI, Anthropic, Google) is adapted to the small
// CoreLLM interface, and operational concerns such as retries, rate limiting,
// circuit breaking, timeouts, metrics and tracing are layered on top as
// Middleware.
//
// Basic usage:
//
//	client, err := llm.NewClient(llm.ClientConfig{
//	    Provider: "openai",
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	    Model:    "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("papernav"),
//	        llm.RetryMiddleware(2, time.Second, 10*time.Second),
//	        llm.RateLimitMiddleware("openai", 5, 10),
//	    },
//	})
//	text, err := client.Complete(ctx, prompt, map[string]any{"response_format": "json_object"})
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/papernavigator/papernav/internal/ports"
)

// CoreLLM is the minimal contract a provider implements. Middleware wraps a
// CoreLLM and returns another one, so cross-cutting behaviour composes
// without touching provider code.
type CoreLLM interface {
	// DoRequest sends prompt to the model and returns the response text
	// together with the input and output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the model used for subsequent requests.
	GetModel() string

	// SetModel switches the model without rebuilding the client.
	SetModel(model string)
}

// Middleware decorates a CoreLLM.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig describes one provider connection.
type ClientConfig struct {
	// Provider selects a registered provider factory: "openai",
	// "anthropic" or "google".
	Provider string

	APIKey string
	Model  string

	// BaseURL overrides the provider endpoint. Empty keeps the default.
	BaseURL string

	// Timeout bounds the underlying HTTP request. Zero leaves it to the
	// caller's context.
	Timeout time.Duration

	// Middleware is applied so that the first entry is the outermost layer.
	Middleware []Middleware
}

// Client adapts a middleware-wrapped CoreLLM to ports.LLMClient.
type Client struct {
	core CoreLLM
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient builds a client for cfg.Provider and wraps it in cfg.Middleware.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := lookupProvider(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", cfg.Provider, Providers())
	}

	core, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	return Wrap(core, cfg.Middleware...), nil
}

// Wrap builds a Client around an existing CoreLLM. It is how tests and
// custom providers get the same middleware composition as NewClient.
func Wrap(core CoreLLM, middleware ...Middleware) *Client {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Complete implements ports.LLMClient.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage is Complete with the token counts reported by the
// provider.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// GetModel implements ports.LLMClient.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider available to NewClient. Built-in
// providers register themselves in init.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[name] = factory
}

func lookupProvider(name string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := providerFactories[name]
	return f, ok
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
