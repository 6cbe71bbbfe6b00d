package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when no model is configured.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

type openAIProvider struct {
	baseProvider
	client *openai.Client
}

func newOpenAIProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := ValidateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientCfg.BaseURL = u
	}
	if t := ClampTimeout(cfg.Timeout); t > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: t}
	}

	return &openAIProvider{
		baseProvider: baseProvider{model: model},
		client:       openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	o := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, o))
	if err != nil {
		return "", 0, 0, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}
	return content,
		tokenCount(int64(resp.Usage.PromptTokens), prompt),
		tokenCount(int64(resp.Usage.CompletionTokens), content),
		nil
}

func (p *openAIProvider) buildRequest(prompt string, o RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if o.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:     o.Model,
		Messages:  messages,
		MaxTokens: o.MaxTokens,
	}
	if o.Temperature != nil {
		req.Temperature = float32(clamp(*o.Temperature, MinTemperature, MaxTemperature))
	}
	if o.TopP != nil {
		req.TopP = float32(*o.TopP)
	}
	if o.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func (p *openAIProvider) classify(err error) error {
	if pe := classifyContext("openai", err); pe != nil {
		return pe
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "unknown error"
		}
		return classifyStatus("openai", apiErr.HTTPStatusCode, msg, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus("openai", reqErr.HTTPStatusCode, "request failed", err)
	}
	return NewProviderError("openai", ErrorTypeNetwork, 0, "request failed", err)
}
