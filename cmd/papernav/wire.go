package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/papernavigator/papernav/infrastructure/judge"
	"github.com/papernavigator/papernav/infrastructure/llm"
	"github.com/papernavigator/papernav/infrastructure/middleware"
	"github.com/papernavigator/papernav/internal/config"
	"github.com/papernavigator/papernav/internal/ports"
)

// newLLMClient is a variable so tests can substitute a fake provider.
var newLLMClient = func(c config.LLMConfig, metrics ports.MetricsCollector) (ports.LLMClient, error) {
	client, err := llm.NewClient(llm.ClientConfig{
		Provider:   c.Provider,
		APIKey:     c.APIKey,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		Middleware: middlewareChain(c, metrics),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// middlewareChain lists provider middleware outermost first. Retries wrap
// the circuit breaker so an open circuit ends the retry loop.
func middlewareChain(c config.LLMConfig, metrics ports.MetricsCollector) []llm.Middleware {
	chain := []llm.Middleware{
		llm.TracingMiddleware("papernav"),
	}
	if metrics != nil {
		chain = append(chain, llm.MetricsMiddleware(c.Provider, metrics))
	}
	if c.MaxRetries > 0 {
		chain = append(chain, llm.RetryMiddleware(c.MaxRetries, c.RetryBaseDelay, c.RetryMaxDelay))
	}
	if c.BreakerFailures > 0 {
		chain = append(chain, llm.CircuitBreakerMiddleware(c.BreakerFailures, c.BreakerCooldown))
	}
	if c.RateLimit > 0 {
		chain = append(chain, llm.RateLimitMiddleware(c.Provider, rate.Limit(c.RateLimit), max(c.RateBurst, 1)))
	}
	if c.Timeout > 0 {
		chain = append(chain, llm.TimeoutMiddleware(c.Provider, c.Timeout))
	}
	return chain
}

// buildComparator stacks the judge decorators. The budget sits below
// position swapping so it counts every physical judge call.
func buildComparator(
	c *config.Config,
	client ports.LLMClient,
	logger *zap.Logger,
	metrics ports.MetricsCollector,
) (ports.Comparator, *middleware.BudgetComparator, error) {
	var cmp ports.Comparator
	base, err := judge.NewLLMComparator(client, c.Judge.Config, judge.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	cmp = base

	var budget *middleware.BudgetComparator
	if c.Judge.MaxCalls > 0 {
		budget = middleware.NewBudgetComparator(cmp, c.Judge.MaxCalls, metrics)
		cmp = budget
	}
	if c.Judge.PositionSwap {
		cmp = middleware.NewPositionSwapComparator(cmp, "judge_position_swap")
	}
	return cmp, budget, nil
}

// metricsServer exposes a registry on /metrics until stopped.
type metricsServer struct {
	srv    *http.Server
	logger *zap.Logger
	done   chan struct{}
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	ms := &metricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(ms.done)
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := ms.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return ms
}

func (m *metricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", zap.Error(err))
	}
	<-m.done
}
