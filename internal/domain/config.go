package domain

import (
	"fmt"
	"math"
	"time"
)

// PairingKind names a pairing strategy.
type PairingKind string

// Supported pairing strategies.
const (
	PairingSwiss  PairingKind = "swiss"
	PairingRandom PairingKind = "random"
)

// RematchPolicy decides which opponent a Swiss pairing falls back to when
// every remaining candidate has already been met.
type RematchPolicy string

// Supported rematch policies.
const (
	// RematchClosestRating picks the closest-rated unpaired player.
	RematchClosestRating RematchPolicy = "closest_rating"
	// RematchLeastRecent picks the unpaired player met longest ago.
	RematchLeastRecent RematchPolicy = "least_recent"
)

// Tournament defaults.
const (
	DefaultKFactor            = 32.0
	DefaultInitialRating      = 1500.0
	DefaultMaxRounds          = 10
	DefaultConcurrency        = 5
	DefaultMatchTimeout       = 30 * time.Second
	DefaultMatchRetries       = 1
	DefaultRetryDelay         = 500 * time.Millisecond
	DefaultEarlyStopWindow    = 3
	DefaultEarlyStopThreshold = 1.0
	DefaultEarlyStopOverlap   = 0.9
	DefaultLeaderboardSize    = 10
)

// TournamentConfig holds every tunable of a tournament run.
type TournamentConfig struct {
	KFactor       float64       `mapstructure:"k_factor" yaml:"k_factor" json:"k_factor" validate:"gte=0"`
	InitialRating float64       `mapstructure:"initial_rating" yaml:"initial_rating" json:"initial_rating"`
	Pairing       PairingKind   `mapstructure:"pairing" yaml:"pairing" json:"pairing" validate:"oneof=swiss random"`
	RematchPolicy RematchPolicy `mapstructure:"rematch_policy" yaml:"rematch_policy" json:"rematch_policy" validate:"oneof=closest_rating least_recent"`
	// CalibrationRounds are played with random pairing before the configured
	// strategy takes over.
	CalibrationRounds int `mapstructure:"calibration_rounds" yaml:"calibration_rounds" json:"calibration_rounds" validate:"gte=0"`
	MaxRounds         int `mapstructure:"max_rounds" yaml:"max_rounds" json:"max_rounds" validate:"gte=1"`

	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency" validate:"gte=1"`
	MatchTimeout time.Duration `mapstructure:"match_timeout" yaml:"match_timeout" json:"match_timeout" validate:"gt=0"`
	MatchRetries int           `mapstructure:"match_retries" yaml:"match_retries" json:"match_retries" validate:"gte=0"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" json:"retry_delay" validate:"gte=0"`

	EarlyStop          bool    `mapstructure:"early_stop" yaml:"early_stop" json:"early_stop"`
	EarlyStopWindow    int     `mapstructure:"early_stop_window" yaml:"early_stop_window" json:"early_stop_window" validate:"gte=1"`
	EarlyStopThreshold float64 `mapstructure:"early_stop_threshold" yaml:"early_stop_threshold" json:"early_stop_threshold" validate:"gte=0"`
	// EarlyStopTopK enables the top-K overlap criterion when positive.
	EarlyStopTopK    int     `mapstructure:"early_stop_top_k" yaml:"early_stop_top_k" json:"early_stop_top_k" validate:"gte=0"`
	EarlyStopOverlap float64 `mapstructure:"early_stop_overlap" yaml:"early_stop_overlap" json:"early_stop_overlap" validate:"gte=0,lte=1"`

	// Seed drives random pairing. Zero picks a time based seed.
	Seed            int64 `mapstructure:"seed" yaml:"seed" json:"seed"`
	LeaderboardSize int   `mapstructure:"leaderboard_size" yaml:"leaderboard_size" json:"leaderboard_size" validate:"gte=1"`
}

// DefaultTournamentConfig returns the configuration used when nothing is
// overridden.
func DefaultTournamentConfig() TournamentConfig {
	return TournamentConfig{
		KFactor:            DefaultKFactor,
		InitialRating:      DefaultInitialRating,
		Pairing:            PairingSwiss,
		RematchPolicy:      RematchClosestRating,
		MaxRounds:          DefaultMaxRounds,
		Concurrency:        DefaultConcurrency,
		MatchTimeout:       DefaultMatchTimeout,
		MatchRetries:       DefaultMatchRetries,
		RetryDelay:         DefaultRetryDelay,
		EarlyStop:          true,
		EarlyStopWindow:    DefaultEarlyStopWindow,
		EarlyStopThreshold: DefaultEarlyStopThreshold,
		EarlyStopOverlap:   DefaultEarlyStopOverlap,
		LeaderboardSize:    DefaultLeaderboardSize,
	}
}

// Validate checks the configuration and returns an error wrapping
// ErrInvalidConfig with a ValidationError listing every problem found.
func (c TournamentConfig) Validate() error {
	verr := NewValidationError("tournament config")

	if math.IsNaN(c.KFactor) || math.IsInf(c.KFactor, 0) || c.KFactor < 0 {
		verr.AddError(fmt.Sprintf("k_factor must be a finite value >= 0, got %v", c.KFactor))
	}
	if math.IsNaN(c.InitialRating) || math.IsInf(c.InitialRating, 0) {
		verr.AddError("initial_rating must be finite")
	}
	switch c.Pairing {
	case PairingSwiss, PairingRandom:
	default:
		verr.AddError(fmt.Sprintf("pairing must be one of swiss, random, got %q", c.Pairing))
	}
	switch c.RematchPolicy {
	case RematchClosestRating, RematchLeastRecent:
	default:
		verr.AddError(fmt.Sprintf("rematch_policy must be one of closest_rating, least_recent, got %q", c.RematchPolicy))
	}
	if c.CalibrationRounds < 0 {
		verr.AddError("calibration_rounds cannot be negative")
	}
	if c.MaxRounds < 1 {
		verr.AddError(fmt.Sprintf("max_rounds must be >= 1, got %d", c.MaxRounds))
	}
	if c.Concurrency < 1 {
		verr.AddError(fmt.Sprintf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.MatchTimeout <= 0 {
		verr.AddError("match_timeout must be positive")
	}
	if c.MatchRetries < 0 {
		verr.AddError("match_retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		verr.AddError("retry_delay cannot be negative")
	}
	if c.EarlyStopWindow < 1 {
		verr.AddError(fmt.Sprintf("early_stop_window must be >= 1, got %d", c.EarlyStopWindow))
	}
	if math.IsNaN(c.EarlyStopThreshold) || c.EarlyStopThreshold < 0 {
		verr.AddError("early_stop_threshold cannot be negative")
	}
	if c.EarlyStopTopK < 0 {
		verr.AddError("early_stop_top_k cannot be negative")
	}
	if math.IsNaN(c.EarlyStopOverlap) || c.EarlyStopOverlap < 0 || c.EarlyStopOverlap > 1 {
		verr.AddError("early_stop_overlap must be within [0,1]")
	}
	if c.LeaderboardSize < 1 {
		verr.AddError("leaderboard_size must be >= 1")
	}

	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, verr)
	}
	return nil
}

// MaxMatches is the most comparator-backed matches a pool of n players can
// produce. Byes are not matches, so each round holds floor(n/2) of them.
func (c TournamentConfig) MaxMatches(n int) int {
	if n < 2 {
		return 0
	}
	return c.MaxRounds * (n / 2)
}
