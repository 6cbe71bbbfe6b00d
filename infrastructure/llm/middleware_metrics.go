package llm

import (
	"context"
	"errors"
	"time"

	"github.com/papernavigator/papernav/internal/ports"
)

type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware records llm_latency_seconds, llm_requests_total and
// llm_tokens_total for every request, labelled by provider, model and status.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, in, out, err := m.next.DoRequest(ctx, prompt, opts)
	if m.collector == nil {
		return response, in, out, err
	}

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(err),
	}
	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(in), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(out), withLabel(labels, "token_type", "output"))
	}
	return response, in, out, err
}

func requestStatus(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pe):
		return pe.Type.String()
	default:
		return "error"
	}
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}

func (m *metricsLLM) GetModel() string  { return m.next.GetModel() }
func (m *metricsLLM) SetModel(s string) { m.next.SetModel(s) }
