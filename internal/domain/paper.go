// Package domain contains the core types of the ranking engine: candidate
// papers, tournament players, matches, judge verdicts and the tournament
// configuration. The package has no dependencies on infrastructure and
// every type here is safe to copy.
package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultAbstractCharLimit is the number of abstract characters shown to a
// judge when no explicit limit is configured.
const DefaultAbstractCharLimit = 500

// Paper is a candidate document that takes part in a tournament.
// Only the ID is required; the remaining fields are descriptive and are
// carried through to the final ranking.
type Paper struct {
	// ID uniquely identifies the paper within one tournament.
	ID string `json:"paper_id" yaml:"paper_id" validate:"required"`

	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Year     int    `json:"year,omitempty" yaml:"year,omitempty"`

	CitationCount            int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
	InfluentialCitationCount int `json:"influential_citation_count,omitempty" yaml:"influential_citation_count,omitempty"`

	// DiscoveredFrom records the paper that led the search to this one, if any.
	DiscoveredFrom string `json:"discovered_from,omitempty" yaml:"discovered_from,omitempty"`
	EdgeType       string `json:"edge_type,omitempty" yaml:"edge_type,omitempty"`
	Depth          int    `json:"depth,omitempty" yaml:"depth,omitempty"`
}

// TruncatedAbstract returns the abstract cut to at most limit runes.
// A non-positive limit returns the abstract unchanged.
func (p Paper) TruncatedAbstract(limit int) string {
	return truncateRunes(p.Abstract, limit)
}

// Summary renders the title and abstract in the compact form used inside
// judge prompts. Papers without an abstract render as their title only.
func (p Paper) Summary(limit int) string {
	var b strings.Builder
	b.WriteString("Title: ")
	if p.Title != "" {
		b.WriteString(p.Title)
	} else {
		b.WriteString(p.ID)
	}
	if p.Year > 0 {
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(p.Year))
		b.WriteString(")")
	}
	if abstract := p.TruncatedAbstract(limit); abstract != "" {
		b.WriteString("\nAbstract: ")
		b.WriteString(abstract)
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
