package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when no model is configured.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

// jsonModeInstruction is appended to the system prompt for providers without
// a native JSON response mode.
const jsonModeInstruction = "Respond with a single JSON object and nothing else."

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

type anthropicProvider struct {
	baseProvider
	client anthropic.Client
}

func newAnthropicProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retries belong to RetryMiddleware so they are visible to metrics and
	// the circuit breaker.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		u, err := ValidateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(u))
	}
	if t := ClampTimeout(cfg.Timeout); t > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: t}))
	}

	return &anthropicProvider{
		baseProvider: baseProvider{model: model},
		client:       anthropic.NewClient(opts...),
	}, nil
}

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	o := ParseRequestOptions(opts, p.GetModel())

	msg, err := p.client.Messages.New(ctx, p.buildParams(prompt, o))
	if err != nil {
		return "", 0, 0, p.classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := text.String()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}
	return content,
		tokenCount(msg.Usage.InputTokens, prompt),
		tokenCount(msg.Usage.OutputTokens, content),
		nil
}

func (p *anthropicProvider) buildParams(prompt string, o RequestOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(o.Model),
		MaxTokens: int64(o.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if o.Temperature != nil {
		// Anthropic accepts temperatures in [0, 1].
		params.Temperature = anthropic.Float(clamp(*o.Temperature, 0, 1))
	}
	if o.TopP != nil {
		params.TopP = anthropic.Float(*o.TopP)
	}

	system := o.System
	if o.JSONMode {
		system = strings.TrimSpace(system + "\n\n" + jsonModeInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (p *anthropicProvider) classify(err error) error {
	if pe := classifyContext("anthropic", err); pe != nil {
		return pe
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 529 {
			return NewProviderError("anthropic", ErrorTypeServerError, apiErr.StatusCode, "anthropic overloaded", err)
		}
		return classifyStatus("anthropic", apiErr.StatusCode, http.StatusText(apiErr.StatusCode), err)
	}
	return NewProviderError("anthropic", ErrorTypeNetwork, 0, "request failed", err)
}
