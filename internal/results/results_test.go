package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/papernavigator/papernav/internal/domain"
)

func sampleResult() *domain.TournamentResult {
	cfg := domain.DefaultTournamentConfig()
	long := strings.Repeat("x", ExportAbstractLimit+50)
	return &domain.TournamentResult{
		RunID:         "run-1",
		Query:         "contrastive learning",
		Reason:        domain.ReasonConverged,
		Rounds:        4,
		MatchesPlayed: 10,
		MatchesFailed: 1,
		Config:        cfg,
		Duration:      1234 * time.Millisecond,
		Standings: []domain.Standing{
			{Rank: 1, PaperID: "a", Title: "SimCLR", Rating: 1531.26, Wins: 3, Draws: 1, MatchesPlayed: 4,
				Paper: domain.Paper{ID: "a", Abstract: long, DiscoveredFrom: "seed", EdgeType: "forward", Depth: 1}},
			{Rank: 2, PaperID: "b", Title: "MoCo", Rating: 1500.04, Wins: 1, Losses: 1, MatchesPlayed: 2},
			{Rank: 3, PaperID: "c", Title: "BYOL", Rating: 1468.75, Losses: 3, Draws: 1, MatchesPlayed: 4},
		},
	}
}

func TestBuild(t *testing.T) {
	// Given a finished tournament
	res := sampleResult()

	// When it is converted for export
	r := Build(res, 0)

	// Then ratings are rounded and abstracts cut
	assert.Equal(t, "contrastive learning", r.Query)
	assert.Equal(t, 3, r.TotalRanked)
	assert.Equal(t, 10, r.MatchesPlayed)
	assert.Equal(t, domain.PairingSwiss, r.Pairing)
	assert.Equal(t, 1.23, r.DurationSeconds)
	require.Len(t, r.Papers, 3)
	assert.Equal(t, 1531.3, r.Papers[0].EloRating)
	assert.Equal(t, 1500.0, r.Papers[1].EloRating)
	assert.Equal(t, 1468.8, r.Papers[2].EloRating)
	assert.Len(t, r.Papers[0].Abstract, ExportAbstractLimit)
	assert.Equal(t, "seed", r.Papers[0].DiscoveredFrom)
	assert.Equal(t, "forward", r.Papers[0].EdgeType)
}

func TestBuild_Top(t *testing.T) {
	r := Build(sampleResult(), 2)

	assert.Equal(t, 2, r.TotalRanked)
	assert.Equal(t, "b", r.Papers[1].PaperID)
}

func TestWrite_JSONLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build(sampleResult(), 0), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	for _, key := range []string{"query", "total_ranked", "matches_played", "papers", "termination_reason"} {
		assert.Contains(t, decoded, key)
	}
	papers := decoded["papers"].([]any)
	first := papers[0].(map[string]any)
	assert.Equal(t, 1531.3, first["elo_rating"])
	assert.Equal(t, float64(3), first["wins"])
	assert.NotContains(t, papers[1].(map[string]any), "abstract")
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build(sampleResult(), 1), FormatYAML))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Papers, 1)
	assert.Equal(t, "SimCLR", decoded.Papers[0].Title)
}

func TestWriteTable(t *testing.T) {
	res := sampleResult()
	res.Standings[1].Title = strings.Repeat("T", maxTitleWidth+10)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build(res, 0), FormatTable))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Query: contrastive learning", lines[0])
	assert.Contains(t, lines[1], "Stopped: CONVERGED")
	assert.True(t, strings.HasPrefix(lines[3], "RANK"))
	assert.Contains(t, lines[4], "1531.3")
	assert.Contains(t, lines[5], strings.Repeat("T", maxTitleWidth-1)+"…")
}

func TestFilename(t *testing.T) {
	cfg := domain.DefaultTournamentConfig()
	assert.Equal(t, "elo_ranked_k32_pswiss.json", Filename(cfg, FormatJSON))

	cfg.KFactor = 24.5
	cfg.Pairing = domain.PairingRandom
	assert.Equal(t, "elo_ranked_k24d5_prandom.yaml", Filename(cfg, FormatYAML))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "table": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("csv")
	assert.ErrorContains(t, err, `unknown output format "csv"`)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	r := Build(sampleResult(), 0)

	path, err := Save(dir, r, Filename(sampleResult().Config, FormatJSON), FormatJSON)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "elo_ranked_k32_pswiss.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"query": "contrastive learning"`)
}
