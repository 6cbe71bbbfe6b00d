package tournament

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

// ExecutorConfig bounds how matches are executed.
type ExecutorConfig struct {
	Concurrency  int
	MatchTimeout time.Duration
	MatchRetries int
	RetryDelay   time.Duration
	KFactor      float64
}

// executorConfigFrom extracts the executor settings from a tournament config.
func executorConfigFrom(cfg domain.TournamentConfig) ExecutorConfig {
	return ExecutorConfig{
		Concurrency:  cfg.Concurrency,
		MatchTimeout: cfg.MatchTimeout,
		MatchRetries: cfg.MatchRetries,
		RetryDelay:   cfg.RetryDelay,
		KFactor:      cfg.KFactor,
	}
}

// MatchExecutor runs the matches of a round against a comparator with
// bounded concurrency and applies every outcome to the rating store as soon
// as it is known.
type MatchExecutor struct {
	store      *RatingStore
	comparator ports.Comparator
	query      string
	cfg        ExecutorConfig

	logger   *zap.Logger
	observer ports.ProgressObserver
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
}

// NewMatchExecutor wires an executor for one tournament run. Nil
// observability dependencies are replaced with no-op implementations.
func NewMatchExecutor(
	store *RatingStore,
	comparator ports.Comparator,
	query string,
	cfg ExecutorConfig,
	logger *zap.Logger,
	observer ports.ProgressObserver,
	metrics ports.MetricsCollector,
	tracer trace.Tracer,
) *MatchExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if tracer == nil {
		tracer = defaultTracer()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &MatchExecutor{
		store:      store,
		comparator: comparator,
		query:      query,
		cfg:        cfg,
		logger:     logger,
		observer:   observer,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Execute plays every match and blocks until all of them have been applied.
// A started round always runs to completion: caller cancellation is ignored
// here and honoured by the controller at the next round boundary, while each
// comparator attempt is still bounded by the match timeout.
func (e *MatchExecutor) Execute(ctx context.Context, matches []domain.Match) domain.RoundSummary {
	ctx = context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		summary = domain.RoundSummary{Scheduled: len(matches)}
	)

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)

	for _, m := range matches {
		g.Go(func() error {
			outcome := e.play(ctx, m)

			_, _, applied, err := e.store.ApplyOutcome(outcome, e.cfg.KFactor)
			if err != nil {
				e.logger.Error("failed to apply match outcome",
					zap.Stringer("match", m), zap.Error(err))
				if outcome.Err == nil {
					outcome.Err = err
				}
				applied = false
			}

			mu.Lock()
			if applied {
				summary.Completed++
				if outcome.Kind() == domain.OutcomeDraw {
					summary.Draws++
				}
			} else {
				summary.Failed++
			}
			mu.Unlock()

			e.observer.OnMatchComplete(ctx, outcome)
			return nil
		})
	}
	_ = g.Wait()

	return summary
}

// play resolves one match, retrying failed comparisons.
func (e *MatchExecutor) play(ctx context.Context, m domain.Match) domain.MatchOutcome {
	ctx, span := e.tracer.Start(ctx, "tournament.match",
		trace.WithAttributes(
			attribute.Int("match.round", m.Round),
			attribute.String("match.paper_a", m.PlayerA),
			attribute.String("match.paper_b", m.PlayerB),
		))
	defer span.End()

	start := time.Now()
	outcome := domain.MatchOutcome{Match: m}

	a, okA := e.store.Paper(m.PlayerA)
	b, okB := e.store.Paper(m.PlayerB)
	if !okA || !okB {
		outcome.Err = domain.NewComparatorError(m, 0, domain.ErrUnknownPlayer)
		span.SetStatus(codes.Error, outcome.Err.Error())
		return outcome
	}

	maxAttempts := e.cfg.MatchRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome.Attempts = attempt
		judgment, err := e.compareOnce(ctx, a, b)
		if err == nil {
			outcome.Judgment = judgment
			lastErr = nil
			break
		}

		lastErr = err
		e.logger.Warn("comparison failed",
			zap.Stringer("match", m),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		span.AddEvent("comparison_failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		))

		if errors.Is(err, ports.ErrBudgetExceeded) {
			break
		}
		if attempt < maxAttempts && e.cfg.RetryDelay > 0 {
			time.Sleep(e.cfg.RetryDelay)
		}
	}
	outcome.Latency = time.Since(start)

	if lastErr != nil {
		outcome.Err = domain.NewComparatorError(m, outcome.Attempts, lastErr)
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "comparison failed")
	} else {
		span.SetAttributes(
			attribute.String("match.verdict", outcome.Judgment.Verdict.String()),
			attribute.Float64("match.confidence", outcome.Judgment.Confidence),
		)
		span.SetStatus(codes.Ok, "")
	}

	e.recordMetrics(outcome)
	e.logger.Debug("match complete",
		zap.Stringer("match", m),
		zap.Stringer("outcome", outcome.Kind()),
		zap.Int("attempts", outcome.Attempts),
		zap.Duration("latency", outcome.Latency))
	return outcome
}

type compareResult struct {
	judgment domain.Judgment
	err      error
}

// compareOnce runs a single comparator call under the match timeout. The
// call runs on its own goroutine so a comparator that ignores its context
// still cannot stall the round; its late result is discarded.
func (e *MatchExecutor) compareOnce(ctx context.Context, a, b domain.Paper) (domain.Judgment, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.MatchTimeout)
	defer cancel()

	done := make(chan compareResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- compareResult{err: fmt.Errorf("%w: %v", domain.ErrComparatorPanic, r)}
			}
		}()
		j, err := e.comparator.Compare(callCtx, a, b, e.query)
		done <- compareResult{judgment: j, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return domain.Judgment{}, fmt.Errorf("%w after %s: %w", domain.ErrComparatorTimeout, e.cfg.MatchTimeout, res.err)
			}
			return domain.Judgment{}, res.err
		}
		if err := res.judgment.Validate(); err != nil {
			return domain.Judgment{}, err
		}
		return res.judgment, nil
	case <-callCtx.Done():
		return domain.Judgment{}, fmt.Errorf("%w after %s", domain.ErrComparatorTimeout, e.cfg.MatchTimeout)
	}
}

func (e *MatchExecutor) recordMetrics(o domain.MatchOutcome) {
	if e.metrics == nil {
		return
	}
	labels := map[string]string{"outcome": o.Kind().String()}
	e.metrics.RecordLatency("match", o.Latency, labels)
	e.metrics.RecordCounter("matches_total", 1, labels)
	if o.Attempts > 1 {
		e.metrics.RecordCounter("match_retries_total", float64(o.Attempts-1), labels)
	}
}
