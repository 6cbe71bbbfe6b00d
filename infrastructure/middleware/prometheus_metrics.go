package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/papernavigator/papernav/internal/ports"
)

// Namespace prefixes every metric exported by PrometheusMetrics.
const Namespace = "papernav"

// PrometheusMetrics implements ports.MetricsCollector on top of Prometheus.
// Well-known metric names are routed to dedicated vectors with meaningful
// labels; anything else falls back to generic vectors keyed by metric name.
type PrometheusMetrics struct {
	matchesTotal     *prometheus.CounterVec
	matchRetries     *prometheus.CounterVec
	tournamentsTotal *prometheus.CounterVec
	roundsTotal      prometheus.Counter

	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	budgetCalls    *prometheus.CounterVec
	budgetExceeded prometheus.Counter

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collector and registers all vectors with
// reg. Passing prometheus.DefaultRegisterer exposes them on the default
// /metrics handler; tests pass a fresh prometheus.NewRegistry().
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		matchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "matches_total",
			Help:      "Matches executed, by outcome.",
		}, []string{"outcome"}),
		matchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "match_retries_total",
			Help:      "Comparator retries spent, by final match outcome.",
		}, []string{"outcome"}),
		tournamentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tournaments_total",
			Help:      "Finished tournaments, by termination reason.",
		}, []string{"reason"}),
		roundsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rounds_total",
			Help:      "Tournament rounds completed.",
		}),

		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_requests_total",
			Help:      "LLM provider requests, by provider, model and status.",
		}, []string{"provider", "model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens exchanged with LLM providers.",
		}, []string{"provider", "model", "token_type"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM provider request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model", "status"}),

		budgetCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "budget_calls_used",
			Help:      "Judge calls admitted by the call budget.",
		}, []string{"budget_limit"}),
		budgetExceeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "budget_exceeded_total",
			Help:      "Judge calls rejected because the budget was spent.",
		}),

		operationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations such as matches and whole tournaments.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		operationCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Counters without a dedicated vector, keyed by metric name.",
		}, []string{"metric", "status"}),
		systemGauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "state",
			Help:      "Current engine state values, keyed by metric name.",
		}, []string{"metric"}),
		histograms: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "observations",
			Help:      "Observed values without a dedicated histogram, keyed by metric name.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"metric"}),
	}
}

// status picks the label describing how an operation ended.
func status(labels map[string]string) string {
	for _, key := range []string{"status", "outcome", "reason"} {
		if v, ok := labels[key]; ok && v != "" {
			return v
		}
	}
	return "unknown"
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	pm.operationLatency.WithLabelValues(operation, status(labels)).Observe(d.Seconds())
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "matches_total":
		pm.matchesTotal.WithLabelValues(status(labels)).Add(value)
	case "match_retries_total":
		pm.matchRetries.WithLabelValues(status(labels)).Add(value)
	case "tournaments_total":
		pm.tournamentsTotal.WithLabelValues(status(labels)).Add(value)
	case "rounds_total":
		pm.roundsTotal.Add(value)
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(labels["provider"], labels["model"], status(labels)).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(labels["provider"], labels["model"], labels["token_type"]).Add(value)
	case "budget_calls_used":
		pm.budgetCalls.WithLabelValues(labels["budget_limit"]).Add(value)
	case "budget_exceeded_total":
		pm.budgetExceeded.Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, status(labels)).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if metric == "llm_latency_seconds" {
		pm.llmLatency.WithLabelValues(labels["provider"], labels["model"], status(labels)).Observe(value)
		return
	}
	pm.histograms.WithLabelValues(metric).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
