package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/papernavigator/papernav/infrastructure/middleware"
	"github.com/papernavigator/papernav/internal/config"
	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
	"github.com/papernavigator/papernav/internal/results"
	"github.com/papernavigator/papernav/internal/testutils"
)

const testConfigYAML = `
tournament:
  max_rounds: 3
  match_retries: 0
  retry_delay: 0s
  concurrency: 2
llm:
  provider: openai
  model: test-model
  api_key: test
  max_retries: 0
log:
  level: error
`

const testCandidates = `{
  "query": "graph neural networks for molecules",
  "papers": [
    {"paper_id": "p1", "title": "Strong message passing for molecular property prediction", "abstract": "MPNN."},
    {"paper_id": "p2", "title": "A survey of convolutional image classifiers", "abstract": "CNNs."},
    {"paper_id": "p3", "title": "Reinforcement learning for robot arms", "abstract": "RL."},
    {"paper_id": "p4", "title": "Strong message passing for molecular property prediction.", "abstract": "Duplicate."}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load(writeFile(t, t.TempDir(), "papernav.yaml", testConfigYAML))
	require.NoError(t, err)
	return c
}

// favourStrong makes the judge prefer any paper whose title starts with
// "Strong" and call every other pairing a draw.
func favourStrong(t *testing.T) *testutils.MockLLMClient {
	t.Helper()
	client := testutils.NewMockLLMClient("test-model")
	client.AddResponse(testutils.MockResponse{
		Pattern:  "Paper A: Strong",
		Response: `{"winner": "A", "confidence": 0.9, "reasoning": "on topic"}`,
	})
	client.AddResponse(testutils.MockResponse{
		Pattern:  "Paper B: Strong",
		Response: `{"winner": "B", "confidence": 0.9, "reasoning": "on topic"}`,
	})

	prev := newLLMClient
	newLLMClient = func(config.LLMConfig, ports.MetricsCollector) (ports.LLMClient, error) {
		return client, nil
	}
	t.Cleanup(func() { newLLMClient = prev })
	return client
}

func TestRunRank_WritesRankingFile(t *testing.T) {
	// Given a candidate pool with a near-duplicate title and a judge that
	// prefers the strong paper
	client := favourStrong(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "candidates.json", testCandidates)
	outDir := filepath.Join(dir, "out")
	c := loadTestConfig(t)

	// When the rank pipeline runs
	var stdout bytes.Buffer
	err := runRank(context.Background(), &stdout, c, rankOptions{
		Input:           input,
		OutputDir:       outDir,
		Format:          "json",
		TitleSimilarity: 0.95,
	}, zaptest.NewLogger(t))

	// Then the ranking file is written with the strong paper first
	require.NoError(t, err)
	path := filepath.Join(outDir, results.Filename(c.Tournament, results.FormatJSON))
	assert.Equal(t, path, strings.TrimSpace(stdout.String()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report results.Report
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, "graph neural networks for molecules", report.Query)
	assert.Equal(t, 3, report.TotalRanked)
	require.NotEmpty(t, report.Papers)
	assert.Equal(t, "p1", report.Papers[0].PaperID)
	assert.Greater(t, report.Papers[0].EloRating, domain.DefaultInitialRating)
	for _, p := range report.Papers {
		assert.NotEqual(t, "p4", p.PaperID)
	}
	assert.Positive(t, client.CallCount())
}

func TestRunRank_StdoutTableWithQueryFlag(t *testing.T) {
	// Given a bare paper list without a stored query
	client := favourStrong(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "pool.json", `[
		{"paper_id": "a", "title": "Strong baseline", "abstract": "x"},
		{"paper_id": "b", "title": "Unrelated work", "abstract": "y"}
	]`)
	c := loadTestConfig(t)

	// When the query comes from the flag and no output dir is set
	var stdout bytes.Buffer
	err := runRank(context.Background(), &stdout, c, rankOptions{
		Input:  input,
		Query:  "baselines",
		Format: "table",
	}, zaptest.NewLogger(t))

	// Then the leaderboard is printed and the prompt carries the query
	require.NoError(t, err)
	out := stdout.String()
	assert.Contains(t, out, "Query: baselines")
	assert.Contains(t, out, "Strong baseline")
	require.NotEmpty(t, client.Prompts())
	assert.Contains(t, client.Prompts()[0], "baselines")
}

func TestRunRank_PositionSwapAndBudget(t *testing.T) {
	// Given position swapping and a budget of four judge calls
	client := favourStrong(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "candidates.json", testCandidates)
	c := loadTestConfig(t)
	c.Judge.PositionSwap = true
	c.Judge.MaxCalls = 4

	// When the tournament runs past the budget
	var stdout bytes.Buffer
	err := runRank(context.Background(), &stdout, c, rankOptions{
		Input:  input,
		Format: "json",
	}, zaptest.NewLogger(t))

	// Then no more than four physical calls reach the model and a
	// ranking is still produced
	require.NoError(t, err)
	assert.LessOrEqual(t, client.CallCount(), 4)
	var report results.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Positive(t, report.MatchesFailed)
}

func TestRunRank_Errors(t *testing.T) {
	favourStrong(t)
	dir := t.TempDir()
	bare := writeFile(t, dir, "bare.json", `[{"paper_id": "a", "title": "A"}, {"paper_id": "b", "title": "B"}]`)
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name string
		opts rankOptions
		want string
	}{
		{"missing query", rankOptions{Input: bare}, "no query given"},
		{"missing file", rankOptions{Input: filepath.Join(dir, "nope.json"), Query: "q"}, "read candidates"},
		{"bad format", rankOptions{Input: bare, Query: "q", Format: "csv"}, "unknown output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runRank(context.Background(), &bytes.Buffer{}, loadTestConfig(t), tt.opts, logger)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRunRank_CanceledReturnsPartialResult(t *testing.T) {
	// Given a context that is already canceled
	favourStrong(t)
	input := writeFile(t, t.TempDir(), "candidates.json", testCandidates)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When ranking starts
	var stdout bytes.Buffer
	err := runRank(ctx, &stdout, loadTestConfig(t), rankOptions{Input: input}, zaptest.NewLogger(t))

	// Then the cancellation is reported and the unplayed standings are
	// still written
	require.ErrorIs(t, err, context.Canceled)
	var report results.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, domain.ReasonCanceled, report.TerminationReason)
	assert.Equal(t, 0, report.Rounds)
}

func TestBuildComparator_Layers(t *testing.T) {
	client := testutils.NewMockLLMClient("m")
	c := loadTestConfig(t)

	cmp, budget, err := buildComparator(c, client, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	assert.Nil(t, budget)
	assert.NotNil(t, cmp)

	c.Judge.MaxCalls = 10
	c.Judge.PositionSwap = true
	cmp, budget, err = buildComparator(c, client, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	require.NotNil(t, budget)
	assert.Equal(t, 10, budget.Remaining())
	swap, ok := cmp.(*middleware.PositionSwapComparator)
	require.True(t, ok)
	assert.Equal(t, "judge_position_swap", swap.Name())
}

func TestMiddlewareChain(t *testing.T) {
	c := loadTestConfig(t).LLM
	c.MaxRetries = 0
	c.BreakerFailures = 0
	c.RateLimit = 0
	c.Timeout = 0

	assert.Len(t, middlewareChain(c, nil), 1)

	c.MaxRetries = 2
	c.BreakerFailures = 3
	c.RateLimit = 5
	c.Timeout = 1
	assert.Len(t, middlewareChain(c, middleware.NewPrometheusMetrics(prometheus.NewRegistry())), 6)
}
