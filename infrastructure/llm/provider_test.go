package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papernavigator/papernav/internal/ports"
)

// captureServer answers every request with status and body and keeps the
// decoded request payload.
func captureServer(t *testing.T, status int, body string) (*httptest.Server, *map[string]any, *string) {
	t.Helper()
	var (
		payload map[string]any
		path    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &payload, &path
}

func TestOpenAIProvider_JSONMode(t *testing.T) {
	// Given an OpenAI compatible server
	srv, payload, path := captureServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"winner\":\"A\"}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
	}`)
	p, err := newOpenAIProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	// When a JSON mode request with a system prompt is sent
	out, in, outTokens, err := p.DoRequest(context.Background(), "compare these", map[string]any{
		"system":          "You are a judge.",
		"response_format": ResponseFormatJSON,
		"temperature":     0.0,
		"max_tokens":      300,
	})

	// Then the request carries the structured output settings
	require.NoError(t, err)
	assert.Equal(t, `{"winner":"A"}`, out)
	assert.Equal(t, 42, in)
	assert.Equal(t, 7, outTokens)
	assert.Equal(t, "/v1/chat/completions", *path)

	body := *payload
	assert.Equal(t, OpenAIDefaultModel, body["model"])
	assert.Equal(t, float64(300), body["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "compare these", messages[1].(map[string]any)["content"])
}

func TestOpenAIProvider_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusUnauthorized, ErrorTypeAuthentication},
		{http.StatusInternalServerError, ErrorTypeServerError},
		{http.StatusBadRequest, ErrorTypeBadRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _, _ := captureServer(t, tt.status, `{"error": {"message": "nope", "type": "x"}}`)
			p, err := newOpenAIProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
			require.NoError(t, err)

			_, _, _, err = p.DoRequest(context.Background(), "p", nil)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Type)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv, _, _ := captureServer(t, http.StatusOK, `{"id": "x", "choices": []}`)
	p, err := newOpenAIProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, _, _, err = p.DoRequest(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ErrNoResponseChoice)
}

func TestAnthropicProvider_DoRequest(t *testing.T) {
	srv, payload, path := captureServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-latest",
		"content": [{"type": "text", "text": "{\"winner\":\"B\"}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 30, "output_tokens": 5}
	}`)
	p, err := newAnthropicProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	out, in, outTokens, err := p.DoRequest(context.Background(), "compare", map[string]any{
		"system":          "You are a judge.",
		"response_format": ResponseFormatJSON,
		"temperature":     1.5,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"winner":"B"}`, out)
	assert.Equal(t, 30, in)
	assert.Equal(t, 5, outTokens)
	assert.Equal(t, "/v1/messages", *path)

	body := *payload
	assert.Equal(t, float64(DefaultMaxTokens), body["max_tokens"])
	assert.Equal(t, 1.0, body["temperature"], "clamped to the provider range")
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	text := system[0].(map[string]any)["text"].(string)
	assert.True(t, strings.HasPrefix(text, "You are a judge."))
	assert.Contains(t, text, jsonModeInstruction)
}

func TestAnthropicProvider_ClassifiesErrors(t *testing.T) {
	srv, _, _ := captureServer(t, http.StatusTooManyRequests,
		`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)
	p, err := newAnthropicProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, _, _, err = p.DoRequest(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.True(t, IsRetryable(err))
}

func TestGoogleProvider_DoRequest(t *testing.T) {
	srv, payload, path := captureServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"winner\":\"draw\"}"}]}}],
		"usageMetadata": {"promptTokenCount": 11, "candidatesTokenCount": 4}
	}`)
	p, err := newGoogleProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	out, in, outTokens, err := p.DoRequest(context.Background(), "compare", map[string]any{
		"response_format": ResponseFormatJSON,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"winner":"draw"}`, out)
	assert.Equal(t, 11, in)
	assert.Equal(t, 4, outTokens)
	assert.Contains(t, *path, GoogleDefaultModel+":generateContent")

	cfg, ok := (*payload)["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestGoogleProvider_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		msg  string
		want ErrorType
	}{
		{"unavailable", 503, "model overloaded", ErrorTypeServerError},
		{"safety", 400, "request blocked due to safety settings", ErrorTypeContentPolicy},
		{"forbidden", 403, "api key invalid", ErrorTypeAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]any{
				"error": map[string]any{"code": tt.code, "message": tt.msg, "status": "X"},
			})
			srv, _, _ := captureServer(t, tt.code, string(body))
			p, err := newGoogleProvider(ClientConfig{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			_, _, _, err = p.DoRequest(context.Background(), "p", nil)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Type)
		})
	}
}

func TestProviders_CanceledContext(t *testing.T) {
	srv, _, _ := captureServer(t, http.StatusOK, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, name := range Providers() {
		t.Run(name, func(t *testing.T) {
			factory, ok := lookupProvider(name)
			require.True(t, ok)
			p, err := factory(ClientConfig{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			_, _, _, err = p.DoRequest(ctx, "p", nil)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, ErrorTypeNetwork, pe.Type)
			assert.False(t, IsRetryable(err))
		})
	}
}
