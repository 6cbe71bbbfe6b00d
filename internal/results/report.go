// Package results exports tournament results as JSON, YAML or a plain text
// table.
package results

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/papernavigator/papernav/internal/domain"
)

// ExportAbstractLimit is the number of abstract runes kept per paper.
const ExportAbstractLimit = 500

// Report is the exported ranking. Its JSON form is the elo_ranked layout
// consumed by downstream report generation.
type Report struct {
	Query             string                   `json:"query" yaml:"query"`
	RunID             string                   `json:"run_id" yaml:"run_id"`
	TerminationReason domain.TerminationReason `json:"termination_reason" yaml:"termination_reason"`
	Rounds            int                      `json:"rounds" yaml:"rounds"`
	TotalRanked       int                      `json:"total_ranked" yaml:"total_ranked"`
	MatchesPlayed     int                      `json:"matches_played" yaml:"matches_played"`
	MatchesFailed     int                      `json:"matches_failed" yaml:"matches_failed"`
	KFactor           float64                  `json:"k_factor" yaml:"k_factor"`
	Pairing           domain.PairingKind       `json:"pairing" yaml:"pairing"`
	StartedAt         time.Time                `json:"started_at" yaml:"started_at"`
	DurationSeconds   float64                  `json:"duration_seconds" yaml:"duration_seconds"`
	Papers            []RankedPaper            `json:"papers" yaml:"papers"`
}

// RankedPaper is one row of Report.Papers.
type RankedPaper struct {
	Rank           int     `json:"rank" yaml:"rank"`
	PaperID        string  `json:"paper_id" yaml:"paper_id"`
	Title          string  `json:"title" yaml:"title"`
	Year           int     `json:"year,omitempty" yaml:"year,omitempty"`
	CitationCount  int     `json:"citation_count" yaml:"citation_count"`
	EloRating      float64 `json:"elo_rating" yaml:"elo_rating"`
	Wins           int     `json:"wins" yaml:"wins"`
	Losses         int     `json:"losses" yaml:"losses"`
	Draws          int     `json:"draws" yaml:"draws"`
	MatchesPlayed  int     `json:"matches_played" yaml:"matches_played"`
	DiscoveredFrom string  `json:"discovered_from,omitempty" yaml:"discovered_from,omitempty"`
	EdgeType       string  `json:"edge_type,omitempty" yaml:"edge_type,omitempty"`
	Depth          int     `json:"depth,omitempty" yaml:"depth,omitempty"`
	Abstract       string  `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// Build converts a tournament result into a Report. top limits the number
// of papers; a non-positive value keeps them all.
func Build(res *domain.TournamentResult, top int) Report {
	standings := res.Top(top)
	r := Report{
		Query:             res.Query,
		RunID:             res.RunID,
		TerminationReason: res.Reason,
		Rounds:            res.Rounds,
		TotalRanked:       len(standings),
		MatchesPlayed:     res.MatchesPlayed,
		MatchesFailed:     res.MatchesFailed,
		KFactor:           res.Config.KFactor,
		Pairing:           res.Config.Pairing,
		StartedAt:         res.StartedAt,
		DurationSeconds:   math.Round(res.Duration.Seconds()*100) / 100,
		Papers:            make([]RankedPaper, 0, len(standings)),
	}
	for _, s := range standings {
		r.Papers = append(r.Papers, RankedPaper{
			Rank:           s.Rank,
			PaperID:        s.PaperID,
			Title:          s.Title,
			Year:           s.Year,
			CitationCount:  s.CitationCount,
			EloRating:      roundRating(s.Rating),
			Wins:           s.Wins,
			Losses:         s.Losses,
			Draws:          s.Draws,
			MatchesPlayed:  s.MatchesPlayed,
			DiscoveredFrom: s.Paper.DiscoveredFrom,
			EdgeType:       s.Paper.EdgeType,
			Depth:          s.Paper.Depth,
			Abstract:       s.Paper.TruncatedAbstract(ExportAbstractLimit),
		})
	}
	return r
}

func roundRating(r float64) float64 {
	return math.Round(r*10) / 10
}

// Filename returns the conventional output name for a run, e.g.
// elo_ranked_k32_pswiss.json. Parameters appear in alphabetical order of
// their long names (k_factor, pairing); fractional K factors use "d" for
// the decimal point.
func Filename(cfg domain.TournamentConfig, format Format) string {
	var b strings.Builder
	b.WriteString("elo_ranked")
	b.WriteString("_k")
	b.WriteString(formatParam(cfg.KFactor))
	if cfg.Pairing != "" {
		b.WriteString("_p")
		b.WriteString(string(cfg.Pairing))
	}
	b.WriteByte('.')
	b.WriteString(format.Extension())
	return b.String()
}

func formatParam(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.ReplaceAll(strconv.FormatFloat(f, 'f', -1, 64), ".", "d")
}
