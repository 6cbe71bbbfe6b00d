package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papernavigator/papernav/internal/domain"
)

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "papernav", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "rank")
}

func TestRankCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"input", "query", "output-dir", "format", "top", "dedupe-similarity",
		"k-factor", "max-rounds", "pairing", "calibration-rounds", "concurrency",
		"seed", "provider", "model", "position-swap", "max-calls", "metrics-addr",
	} {
		assert.NotNil(t, rankCmd.Flags().Lookup(name), name)
	}

	input := rankCmd.Flags().Lookup("input")
	assert.Equal(t, []string{"true"}, input.Annotations[cobra.BashCompOneRequiredFlag])
	assert.Equal(t, "i", input.Shorthand)
}

func TestApplyFlagOverrides(t *testing.T) {
	// Given a freshly loaded config and a command with only some flags set
	c := loadTestConfig(t)
	fresh := &cobra.Command{Use: "rank"}
	fresh.Flags().Float64("k-factor", domain.DefaultKFactor, "")
	fresh.Flags().Int("max-rounds", domain.DefaultMaxRounds, "")
	fresh.Flags().String("pairing", "swiss", "")
	fresh.Flags().Int("calibration-rounds", 0, "")
	fresh.Flags().Int("concurrency", domain.DefaultConcurrency, "")
	fresh.Flags().Int64("seed", 0, "")
	fresh.Flags().String("provider", "", "")
	fresh.Flags().String("model", "", "")
	fresh.Flags().Bool("position-swap", false, "")
	fresh.Flags().Int("max-calls", 0, "")
	fresh.Flags().String("metrics-addr", "", "")
	require.NoError(t, fresh.ParseFlags([]string{
		"--k-factor", "16", "--pairing", "random", "--seed", "7",
		"--position-swap", "--max-calls", "50", "--metrics-addr", ":9999",
	}))

	// When the overrides are applied
	require.NoError(t, applyFlagOverrides(fresh, c))

	// Then changed flags win and untouched ones keep the loaded values
	assert.Equal(t, 16.0, c.Tournament.KFactor)
	assert.Equal(t, domain.PairingRandom, c.Tournament.Pairing)
	assert.Equal(t, int64(7), c.Tournament.Seed)
	assert.Equal(t, 3, c.Tournament.MaxRounds)
	assert.Equal(t, "test-model", c.LLM.Model)
	assert.True(t, c.Judge.PositionSwap)
	assert.Equal(t, 50, c.Judge.MaxCalls)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, ":9999", c.Metrics.Addr)
}

func TestApplyFlagOverrides_Invalid(t *testing.T) {
	c := loadTestConfig(t)
	fresh := &cobra.Command{Use: "rank"}
	fresh.Flags().String("pairing", "swiss", "")
	require.NoError(t, fresh.ParseFlags([]string{"--pairing", "elimination"}))

	err := applyFlagOverrides(fresh, c)

	assert.ErrorContains(t, err, "config")
}
