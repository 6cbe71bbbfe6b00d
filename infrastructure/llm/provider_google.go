package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when no model is configured.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

type googleProvider struct {
	baseProvider
	client *genai.Client
}

func newGoogleProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		u, err := ValidateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		cc.HTTPOptions.BaseURL = u
	}
	if t := ClampTimeout(cfg.Timeout); t > 0 {
		cc.HTTPClient = &http.Client{Timeout: t}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	return &googleProvider{
		baseProvider: baseProvider{model: model},
		client:       client,
	}, nil
}

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	o := ParseRequestOptions(opts, p.GetModel())

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, o.Model, contents, p.generationConfig(o))
	if err != nil {
		return "", 0, 0, p.classify(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}
	var in, out int64
	if u := resp.UsageMetadata; u != nil {
		in, out = int64(u.PromptTokenCount), int64(u.CandidatesTokenCount)
	}
	return content, tokenCount(in, prompt), tokenCount(out, content), nil
}

func (p *googleProvider) generationConfig(o RequestOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(o.MaxTokens, math.MaxInt32)),
	}
	if o.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(o.System, genai.RoleUser)
	}
	if o.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(clamp(*o.Temperature, MinTemperature, MaxTemperature)))
	}
	if o.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*o.TopP))
	}
	if o.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (p *googleProvider) classify(err error) error {
	if pe := classifyContext("google", err); pe != nil {
		return pe
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyBlock(apiErr.Message, apiErr.Status) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code, "request blocked by safety filters", err)
		}
		return classifyStatus("google", apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		reasons := make([]string, 0, len(gErr.Errors))
		for _, item := range gErr.Errors {
			reasons = append(reasons, item.Reason)
			if msg == "" {
				msg = item.Message
			}
		}
		if isSafetyBlock(msg, strings.Join(reasons, " ")) {
			return NewProviderError("google", ErrorTypeContentPolicy, gErr.Code, "request blocked by safety filters", err)
		}
		return classifyStatus("google", gErr.Code, msg, err)
	}

	return NewProviderError("google", ErrorTypeNetwork, 0, "request failed", err)
}

func isSafetyBlock(parts ...string) bool {
	for _, s := range parts {
		lower := strings.ToLower(s)
		if strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") {
			return true
		}
	}
	return false
}
