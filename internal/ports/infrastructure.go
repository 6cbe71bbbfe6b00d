package ports

import (
	"context"
	"time"

	"github.com/papernavigator/papernav/internal/domain"
)

// Comparator decides which of two papers better answers a query.
// Implementations must be safe for concurrent use; the engine calls Compare
// from many goroutines at once and treats every returned error as a failed
// match rather than a fatal condition.
type Comparator interface {
	// Compare judges paper a against paper b for query. The returned
	// Judgment is relative to the argument order: VerdictA means a won.
	Compare(ctx context.Context, a, b domain.Paper, query string) (domain.Judgment, error)
}

// ComparatorFunc adapts a plain function to the Comparator interface.
type ComparatorFunc func(ctx context.Context, a, b domain.Paper, query string) (domain.Judgment, error)

// Compare calls f.
func (f ComparatorFunc) Compare(ctx context.Context, a, b domain.Paper, query string) (domain.Judgment, error) {
	return f(ctx, a, b, query)
}

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64
	//   - "max_tokens": int
	//   - "system": string
	//   - "response_format": "json_object" to request structured output
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
