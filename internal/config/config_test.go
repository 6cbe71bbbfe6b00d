package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/papernavigator/papernav/internal/domain"
)

// chdir moves into a fresh directory so no papernav.yaml is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func clearKeys(t *testing.T) {
	t.Helper()
	for _, names := range providerKeyEnv {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	clearKeys(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultTournamentConfig(), cfg.Tournament)
	assert.Equal(t, 150, cfg.Judge.MaxTokens)
	assert.Equal(t, domain.DefaultAbstractCharLimit, cfg.Judge.AbstractCharLimit)
	assert.False(t, cfg.Judge.PositionSwap)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 5, cfg.LLM.BreakerFailures)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdir(t)
	clearKeys(t)

	yaml := `
tournament:
  k_factor: 24
  pairing: random
  max_rounds: 6
  match_timeout: 45s
  early_stop_top_k: 5
judge:
  temperature: 0.3
  position_swap: true
  max_calls: 200
  profile:
    domain: information retrieval
    required: [dense retrieval]
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "papernav.yaml"), []byte(yaml), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 24.0, cfg.Tournament.KFactor)
	assert.Equal(t, domain.PairingRandom, cfg.Tournament.Pairing)
	assert.Equal(t, 6, cfg.Tournament.MaxRounds)
	assert.Equal(t, 45*time.Second, cfg.Tournament.MatchTimeout)
	assert.Equal(t, 5, cfg.Tournament.EarlyStopTopK)
	assert.InDelta(t, 0.3, cfg.Judge.Temperature, 1e-9)
	assert.True(t, cfg.Judge.PositionSwap)
	assert.Equal(t, 200, cfg.Judge.MaxCalls)
	assert.Equal(t, "information retrieval", cfg.Judge.Profile.Domain)
	assert.Equal(t, []string{"dense retrieval"}, cfg.Judge.Profile.Required)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, domain.DefaultConcurrency, cfg.Tournament.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	clearKeys(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tournament:\n  max_rounds: 4\nllm:\n  model: from-file\n"), 0o600))
	t.Setenv("PAPERNAV_TOURNAMENT_MAX_ROUNDS", "9")
	t.Setenv("PAPERNAV_LLM_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Tournament.MaxRounds)
	assert.Equal(t, "from-file", cfg.LLM.Model)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestLoadProviderKeyFallback(t *testing.T) {
	chdir(t)
	clearKeys(t)
	t.Setenv("PAPERNAV_LLM_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestLoadErrors(t *testing.T) {
	t.Run("explicit file must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "config: read file")
	})

	t.Run("unknown provider", func(t *testing.T) {
		chdir(t)
		t.Setenv("PAPERNAV_LLM_PROVIDER", "mistral")
		_, err := Load("")
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("tournament invariants", func(t *testing.T) {
		chdir(t)
		t.Setenv("PAPERNAV_TOURNAMENT_INITIAL_RATING", "Inf")
		_, err := Load("")
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "initial_rating must be finite")
	})

	t.Run("tournament field from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "papernav.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tournament:\n  concurrency: 0\n"), 0o600))
		_, err := Load(path)
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "concurrency must be >= 1, got 0")
	})

	t.Run("log format", func(t *testing.T) {
		chdir(t)
		t.Setenv("PAPERNAV_LOG_FORMAT", "xml")
		_, err := Load("")
		assert.ErrorContains(t, err, "validation failed")
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.ErrorContains(t, err, "parse log level")
}

func TestInitLogger_ReplacesGlobal(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))

	assert.True(t, zap.L().Core().Enabled(zapcore.DebugLevel))
}
