package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

var (
	_ ports.ProgressObserver = (*MetricsObserver)(nil)
	_ ports.ProgressObserver = (*LoggingObserver)(nil)
)

// MetricsObserver turns tournament progress events into gauges and
// histograms: the current round, the leader's rating, the per-round mean
// rating change and failure count, and the confidence of decided matches.
type MetricsObserver struct {
	metrics ports.MetricsCollector
}

// NewMetricsObserver returns an observer that reports to metrics.
func NewMetricsObserver(metrics ports.MetricsCollector) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

// OnMatchComplete implements ports.ProgressObserver.
func (m *MetricsObserver) OnMatchComplete(_ context.Context, o domain.MatchOutcome) {
	if o.Err != nil {
		return
	}
	m.metrics.RecordHistogram("judge_confidence", o.Judgment.Confidence,
		map[string]string{"outcome": o.Kind().String()})
}

// OnRoundComplete implements ports.ProgressObserver.
func (m *MetricsObserver) OnRoundComplete(_ context.Context, ev domain.RoundEvent) {
	s := ev.Summary
	m.metrics.RecordGauge("tournament_round", float64(s.Round), nil)
	m.metrics.RecordGauge("round_failed_matches", float64(s.Failed), nil)
	m.metrics.RecordGauge("round_draws", float64(s.Draws), nil)
	m.metrics.RecordLatency("round", s.Duration, map[string]string{"status": "completed"})
	if len(ev.Leaderboard) > 0 {
		m.metrics.RecordGauge("leader_rating", ev.Leaderboard[0].Rating, nil)
	}
}

// LoggingObserver prints a live leaderboard after every round. Round and
// match summaries are already logged by the tournament, so it adds only the
// standings.
type LoggingObserver struct {
	logger *zap.Logger
	top    int
}

// NewLoggingObserver logs the top entries of each round's leaderboard.
// A non-positive top logs the whole leaderboard.
func NewLoggingObserver(logger *zap.Logger, top int) *LoggingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingObserver{logger: logger, top: top}
}

// OnMatchComplete implements ports.ProgressObserver.
func (l *LoggingObserver) OnMatchComplete(context.Context, domain.MatchOutcome) {}

// OnRoundComplete implements ports.ProgressObserver.
func (l *LoggingObserver) OnRoundComplete(_ context.Context, ev domain.RoundEvent) {
	board := ev.Leaderboard
	if l.top > 0 && len(board) > l.top {
		board = board[:l.top]
	}
	for _, s := range board {
		l.logger.Info("standing",
			zap.String("run_id", ev.RunID),
			zap.Int("round", ev.Summary.Round),
			zap.Int("rank", s.Rank),
			zap.String("paper_id", s.PaperID),
			zap.Float64("rating", s.Rating),
			zap.Int("wins", s.Wins),
			zap.Int("losses", s.Losses),
			zap.Int("draws", s.Draws),
		)
	}
}
