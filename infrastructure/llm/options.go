package llm

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Option keys understood by every provider.
const (
	OptMaxTokens      = "max_tokens"
	OptModel          = "model"
	OptSystem         = "system"
	OptTemperature    = "temperature"
	OptTopP           = "top_p"
	OptResponseFormat = "response_format"

	// ResponseFormatJSON asks the provider for a single JSON object.
	ResponseFormatJSON = "json_object"
)

// Parameter bounds shared by the providers.
const (
	DefaultMaxTokens = 1024

	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0

	MinTimeout = time.Second
	MaxTimeout = 10 * time.Minute
)

// RequestOptions is the normalized form of the options map passed to
// Complete.
type RequestOptions struct {
	MaxTokens   int
	Model       string
	System      string
	Temperature *float64
	TopP        *float64
	// JSONMode is set when response_format is "json_object".
	JSONMode bool
	// Extra keeps every key not listed above for provider specific use.
	Extra map[string]any
}

// ParseRequestOptions normalizes opts. Missing or out-of-range values fall
// back to defaults instead of failing the request.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	o := RequestOptions{
		MaxTokens: optInt(opts, OptMaxTokens, DefaultMaxTokens, func(v int) bool { return v > 0 }),
		Model:     optString(opts, OptModel, defaultModel, func(v string) bool { return v != "" }),
		System:    optString(opts, OptSystem, "", nil),
		JSONMode:  optString(opts, OptResponseFormat, "", nil) == ResponseFormatJSON,
		Extra:     make(map[string]any),
	}
	if v, ok := optFloat(opts, OptTemperature); ok && v >= MinTemperature && v <= MaxTemperature {
		o.Temperature = &v
	}
	if v, ok := optFloat(opts, OptTopP); ok && v >= MinTopP && v <= MaxTopP {
		o.TopP = &v
	}

	for k, v := range opts {
		switch k {
		case OptMaxTokens, OptModel, OptSystem, OptTemperature, OptTopP, OptResponseFormat:
		default:
			o.Extra[k] = v
		}
	}
	return o
}

func optInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	var v int
	switch raw := opts[key].(type) {
	case int:
		v = raw
	case int64:
		v = int(raw)
	case float64:
		v = int(raw)
	default:
		return def
	}
	if valid != nil && !valid(v) {
		return def
	}
	return v
}

func optString(opts map[string]any, key, def string, valid func(string) bool) string {
	v, ok := opts[key].(string)
	if !ok || (valid != nil && !valid(v)) {
		return def
	}
	return v
}

func optFloat(opts map[string]any, key string) (float64, bool) {
	switch raw := opts[key].(type) {
	case float64:
		return raw, true
	case float32:
		return float64(raw), true
	case int:
		return float64(raw), true
	default:
		return 0, false
	}
}

// ValidateBaseURL checks that baseURL is an absolute http(s) URL. An empty
// string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

// ClampTimeout keeps a positive timeout inside [MinTimeout, MaxTimeout].
// Zero or negative means no client timeout.
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 0
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// estimateTokens approximates a token count at four characters per token
// for providers that omit usage data.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func tokenCount(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return estimateTokens(text)
}

// baseProvider holds the model name shared by all providers.
type baseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model.
func (b *baseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel replaces the configured model.
func (b *baseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}
