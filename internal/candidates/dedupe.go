package candidates

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/papernavigator/papernav/internal/domain"
)

// DuplicateKind says why a paper was dropped.
type DuplicateKind string

// Duplicate kinds.
const (
	DuplicateID    DuplicateKind = "id"
	DuplicateTitle DuplicateKind = "title"
)

// Duplicate records a dropped paper and the kept paper it collided with.
type Duplicate struct {
	Paper      domain.Paper
	KeptID     string
	Kind       DuplicateKind
	Similarity float64
}

// DedupeOptions controls near-duplicate detection.
type DedupeOptions struct {
	// TitleSimilarity in (0, 1] drops a paper whose normalised title is at
	// least this similar to an earlier one. Zero only collapses equal IDs.
	TitleSimilarity float64
	// MinTitleLength skips fuzzy matching for titles shorter than this many
	// runes after normalisation, since short titles collide too easily.
	MinTitleLength int
}

// DefaultDedupeOptions returns conservative settings that only merge
// titles differing by punctuation, case or a typo.
func DefaultDedupeOptions() DedupeOptions {
	return DedupeOptions{TitleSimilarity: 0.95, MinTitleLength: 12}
}

// Dedupe returns papers with duplicates removed, keeping the first
// occurrence. Input order is preserved.
func Dedupe(papers []domain.Paper, opts DedupeOptions) ([]domain.Paper, []Duplicate) {
	fold := cases.Fold()
	kept := make([]domain.Paper, 0, len(papers))
	titles := make([]string, 0, len(papers))
	seen := make(map[string]bool, len(papers))
	var dropped []Duplicate

	for _, p := range papers {
		if seen[p.ID] {
			dropped = append(dropped, Duplicate{Paper: p, KeptID: p.ID, Kind: DuplicateID, Similarity: 1})
			continue
		}

		title := normalizeTitle(fold.String(p.Title))
		if opts.TitleSimilarity > 0 && len([]rune(title)) >= opts.MinTitleLength {
			if idx, sim := mostSimilar(title, titles); idx >= 0 && sim >= opts.TitleSimilarity {
				dropped = append(dropped, Duplicate{Paper: p, KeptID: kept[idx].ID, Kind: DuplicateTitle, Similarity: sim})
				continue
			}
		}

		seen[p.ID] = true
		kept = append(kept, p)
		titles = append(titles, title)
	}
	return kept, dropped
}

// TitleSimilarity returns 1 - editDistance/maxLen over case-folded,
// punctuation-free titles.
func TitleSimilarity(a, b string) float64 {
	fold := cases.Fold()
	return similarity(normalizeTitle(fold.String(a)), normalizeTitle(fold.String(b)))
}

func mostSimilar(title string, titles []string) (int, float64) {
	best, bestSim := -1, 0.0
	for i, t := range titles {
		if t == "" {
			continue
		}
		if s := similarity(title, t); s > bestSim {
			best, bestSim = i, s
		}
	}
	return best, bestSim
}

func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// normalizeTitle drops punctuation and collapses whitespace.
func normalizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
