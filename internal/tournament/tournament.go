package tournament

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

const tracerName = "github.com/papernavigator/papernav/internal/tournament"

func defaultTracer() trace.Tracer { return otel.Tracer(tracerName) }

// Option customizes a Tournament.
type Option func(*Tournament)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tournament) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(o ports.ProgressObserver) Option {
	return func(t *Tournament) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(t *Tournament) { t.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Tournament) {
		if tr != nil {
			t.tracer = tr
		}
	}
}

// WithPairing replaces the pairing strategy derived from the configuration.
func WithPairing(p PairingStrategy) Option {
	return func(t *Tournament) {
		if p != nil {
			t.pairing = p
		}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(t *Tournament) {
		if id != "" {
			t.runID = id
		}
	}
}

// Tournament drives a ranking run: it owns the round counter and the
// lifecycle state, and is the only component that advances either.
// A Tournament runs once; create a new one for every query.
type Tournament struct {
	cfg        domain.TournamentConfig
	comparator ports.Comparator
	pairing    PairingStrategy
	runID      string

	logger   *zap.Logger
	observer ports.ProgressObserver
	metrics  ports.MetricsCollector
	tracer   trace.Tracer

	mu    sync.Mutex
	state domain.TournamentState
}

// New validates cfg and returns a tournament ready to Run. An invalid
// configuration yields an error wrapping domain.ErrInvalidConfig.
func New(cfg domain.TournamentConfig, comparator ports.Comparator, opts ...Option) (*Tournament, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if comparator == nil {
		return nil, fmt.Errorf("%w: comparator is required", domain.ErrInvalidConfig)
	}

	t := &Tournament{
		cfg:        cfg,
		comparator: comparator,
		logger:     zap.NewNop(),
		observer:   ports.NopObserver{},
		tracer:     defaultTracer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.pairing == nil {
		t.pairing = NewPairing(cfg)
	}
	if t.runID == "" {
		t.runID = uuid.NewString()
	}
	t.state = domain.TournamentState{
		RunID:  t.runID,
		Status: domain.StatusInitialized,
		Config: cfg,
	}
	return t, nil
}

// State returns a copy of the current lifecycle state.
func (t *Tournament) State() domain.TournamentState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tournament) setStatus(s domain.Status) {
	t.mu.Lock()
	t.state.Status = s
	t.mu.Unlock()
}

func (t *Tournament) advanceRound() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Round++
	return t.state.Round
}

func (t *Tournament) terminate(reason domain.TerminationReason) {
	t.mu.Lock()
	t.state.Reason = reason
	t.state.Status = domain.StatusTerminated
	t.mu.Unlock()
}

// Run ranks papers for query. It always returns a usable result: a pool too
// small to pair terminates immediately with NO_PAIRS_POSSIBLE, and failed
// matches only cost information. The only error besides running twice is a
// canceled context, which stops the run at the next round boundary and is
// returned together with the partial result.
func (t *Tournament) Run(ctx context.Context, papers []domain.Paper, query string) (*domain.TournamentResult, error) {
	t.mu.Lock()
	if t.state.Status != domain.StatusInitialized {
		t.mu.Unlock()
		return nil, fmt.Errorf("tournament %s already started", t.runID)
	}
	t.mu.Unlock()

	ctx, span := t.tracer.Start(ctx, "tournament.run",
		trace.WithAttributes(
			attribute.String("tournament.run_id", t.runID),
			attribute.Int("tournament.papers", len(papers)),
			attribute.Int("tournament.max_rounds", t.cfg.MaxRounds),
		))
	defer span.End()

	started := time.Now()
	log := t.logger.With(zap.String("run_id", t.runID))

	store, dropped := NewRatingStore(papers, t.cfg.InitialRating)
	if len(dropped) > 0 {
		log.Warn("duplicate paper ids ignored", zap.Strings("paper_ids", dropped))
	}
	executor := NewMatchExecutor(store, t.comparator, query, executorConfigFrom(t.cfg),
		log, t.observer, t.metrics, t.tracer)
	detector := NewConvergenceDetector(t.cfg)

	t.setStatus(domain.StatusRunning)
	log.Info("tournament started",
		zap.Int("papers", store.Len()),
		zap.String("pairing", string(t.cfg.Pairing)),
		zap.Int("max_rounds", t.cfg.MaxRounds),
		zap.Int("concurrency", t.cfg.Concurrency))

	result := &domain.TournamentResult{
		RunID:     t.runID,
		Query:     query,
		Config:    t.cfg,
		StartedAt: started,
	}

	var (
		reason domain.TerminationReason
		runErr error
	)
	for {
		if err := ctx.Err(); err != nil {
			reason = domain.ReasonCanceled
			runErr = fmt.Errorf("tournament %s canceled after %d round(s): %w", t.runID, result.Rounds, err)
			break
		}

		players := store.Players()
		next := t.State().Round + 1
		matches := t.pairing.NextRound(players, next)
		if len(matches) == 0 {
			reason = domain.ReasonNoPairsPossible
			break
		}

		round := t.advanceRound()
		summary := t.playRound(ctx, store, executor, players, matches, round)
		result.Rounds = round
		result.MatchesPlayed += summary.Completed
		result.MatchesFailed += summary.Failed
		result.Byes += summary.Byes
		result.RoundLog = append(result.RoundLog, summary)

		standings := store.Snapshot()
		detector.Record(summary.MeanDelta, standings)
		t.observer.OnRoundComplete(ctx, domain.RoundEvent{
			RunID:       t.runID,
			Summary:     summary,
			Leaderboard: topStandings(standings, t.cfg.LeaderboardSize),
		})

		avg, _ := detector.MovingAverage()
		log.Info("round complete",
			zap.Int("round", round),
			zap.Int("scheduled", summary.Scheduled),
			zap.Int("completed", summary.Completed),
			zap.Int("failed", summary.Failed),
			zap.Float64("mean_delta", summary.MeanDelta),
			zap.Float64("moving_average", avg))

		if t.cfg.EarlyStop && detector.Converged() {
			reason = domain.ReasonConverged
			break
		}
		if round >= t.cfg.MaxRounds {
			reason = domain.ReasonMaxRounds
			break
		}
	}

	t.terminate(reason)
	result.Reason = reason
	result.Standings = store.Snapshot()
	result.Duration = time.Since(started)

	span.SetAttributes(
		attribute.String("tournament.termination_reason", string(reason)),
		attribute.Int("tournament.rounds", result.Rounds),
		attribute.Int("tournament.matches_played", result.MatchesPlayed),
		attribute.Int("tournament.matches_failed", result.MatchesFailed),
	)
	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if t.metrics != nil {
		labels := map[string]string{"reason": string(reason)}
		t.metrics.RecordCounter("tournaments_total", 1, labels)
		t.metrics.RecordLatency("tournament", result.Duration, labels)
	}

	log.Info("tournament finished",
		zap.String("reason", string(reason)),
		zap.Int("rounds", result.Rounds),
		zap.Int("matches_played", result.MatchesPlayed),
		zap.Int("matches_failed", result.MatchesFailed),
		zap.Duration("duration", result.Duration))

	return result, runErr
}

// playRound executes one round and closes it on the rating store.
func (t *Tournament) playRound(
	ctx context.Context,
	store *RatingStore,
	executor *MatchExecutor,
	players []*domain.Player,
	matches []domain.Match,
	round int,
) domain.RoundSummary {
	ctx, span := t.tracer.Start(ctx, "tournament.round",
		trace.WithAttributes(
			attribute.Int("round.number", round),
			attribute.Int("round.matches", len(matches)),
		))
	defer span.End()

	start := time.Now()
	byes := Byes(players, matches)
	for _, id := range byes {
		if err := store.RecordBye(id, round); err != nil {
			t.logger.Error("failed to record bye", zap.String("paper_id", id), zap.Error(err))
		}
	}

	summary := executor.Execute(ctx, matches)
	summary.Round = round
	summary.Byes = len(byes)
	summary.MeanDelta = store.CloseRound()
	summary.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("round.completed", summary.Completed),
		attribute.Int("round.failed", summary.Failed),
		attribute.Float64("round.mean_delta", summary.MeanDelta),
	)
	if t.metrics != nil {
		t.metrics.RecordCounter("rounds_total", 1, nil)
		t.metrics.RecordGauge("round_mean_delta", summary.MeanDelta, nil)
	}
	return summary
}

func topStandings(s []domain.Standing, n int) []domain.Standing {
	if n > len(s) {
		n = len(s)
	}
	out := make([]domain.Standing, n)
	copy(out, s[:n])
	return out
}
