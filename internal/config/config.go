// Package config loads papernav settings from defaults, an optional YAML
// file and PAPERNAV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/papernavigator/papernav/infrastructure/judge"
	"github.com/papernavigator/papernav/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. PAPERNAV_LLM_MODEL.
const EnvPrefix = "PAPERNAV"

// Config holds the full application configuration.
type Config struct {
	Tournament domain.TournamentConfig `yaml:"tournament" mapstructure:"tournament"`
	Judge      JudgeConfig             `yaml:"judge" mapstructure:"judge"`
	LLM        LLMConfig               `yaml:"llm" mapstructure:"llm"`
	Log        LogConfig               `yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig           `yaml:"metrics" mapstructure:"metrics"`
}

// JudgeConfig configures the LLM judge and the comparator decorators
// stacked on top of it.
type JudgeConfig struct {
	judge.Config `yaml:",inline" mapstructure:",squash"`

	// PositionSwap judges every pair in both orders.
	PositionSwap bool `yaml:"position_swap" mapstructure:"position_swap"`
	// MaxCalls caps judge calls for the whole run; zero means unlimited.
	MaxCalls int `yaml:"max_calls" mapstructure:"max_calls" validate:"gte=0"`
}

// LLMConfig configures the provider client and its middleware chain.
type LLMConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider" validate:"oneof=openai anthropic google"`
	Model    string        `yaml:"model" mapstructure:"model"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay" validate:"gte=0"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay" validate:"gte=0"`

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst" validate:"gte=0"`

	// BreakerFailures consecutive failures open the circuit; zero disables it.
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures" validate:"gte=0"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
}

// providerKeyEnv lists the conventional API key variables per provider,
// consulted when llm.api_key is unset.
var providerKeyEnv = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"google":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	t := domain.DefaultTournamentConfig()
	v.SetDefault("tournament.k_factor", t.KFactor)
	v.SetDefault("tournament.initial_rating", t.InitialRating)
	v.SetDefault("tournament.pairing", string(t.Pairing))
	v.SetDefault("tournament.rematch_policy", string(t.RematchPolicy))
	v.SetDefault("tournament.calibration_rounds", t.CalibrationRounds)
	v.SetDefault("tournament.max_rounds", t.MaxRounds)
	v.SetDefault("tournament.concurrency", t.Concurrency)
	v.SetDefault("tournament.match_timeout", t.MatchTimeout)
	v.SetDefault("tournament.match_retries", t.MatchRetries)
	v.SetDefault("tournament.retry_delay", t.RetryDelay)
	v.SetDefault("tournament.early_stop", t.EarlyStop)
	v.SetDefault("tournament.early_stop_window", t.EarlyStopWindow)
	v.SetDefault("tournament.early_stop_threshold", t.EarlyStopThreshold)
	v.SetDefault("tournament.early_stop_top_k", t.EarlyStopTopK)
	v.SetDefault("tournament.early_stop_overlap", t.EarlyStopOverlap)
	v.SetDefault("tournament.seed", t.Seed)
	v.SetDefault("tournament.leaderboard_size", t.LeaderboardSize)

	j := judge.DefaultConfig()
	v.SetDefault("judge.prompt", "")
	v.SetDefault("judge.temperature", j.Temperature)
	v.SetDefault("judge.max_tokens", j.MaxTokens)
	v.SetDefault("judge.abstract_char_limit", j.AbstractCharLimit)
	v.SetDefault("judge.min_confidence", j.MinConfidence)
	v.SetDefault("judge.disable_json_mode", false)
	v.SetDefault("judge.position_swap", false)
	v.SetDefault("judge.max_calls", 0)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("llm.retry_max_delay", 10*time.Second)
	v.SetDefault("llm.rate_limit", 0.0)
	v.SetDefault("llm.rate_burst", 1)
	v.SetDefault("llm.breaker_failures", 5)
	v.SetDefault("llm.breaker_cooldown", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Load reads configuration. An empty path looks for papernav.yaml in the
// working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("papernav")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the tournament invariants, then the struct tags of the
// remaining sections. Tournament problems wrap domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.Tournament.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

func providerKey(provider string) string {
	for _, name := range providerKeyEnv[provider] {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}
