package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Format selects an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatTable:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (available: json, yaml, table)", s)
	}
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTable:
		return "txt"
	default:
		return "json"
	}
}

// Write encodes r to w in format f.
func Write(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTable:
		return WriteTable(w, r)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// maxTitleWidth bounds the title column of the table output.
const maxTitleWidth = 60

// WriteTable renders a fixed-width leaderboard.
func WriteTable(w io.Writer, r Report) error {
	fmt.Fprintf(w, "Query: %s\n", r.Query)
	fmt.Fprintf(w, "Rounds: %d  Matches: %d  Failed: %d  Stopped: %s\n\n",
		r.Rounds, r.MatchesPlayed, r.MatchesFailed, r.TerminationReason)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tELO\tW\tL\tD\tPAPER\tTITLE\t")
	for _, p := range r.Papers {
		fmt.Fprintf(tw, "%d\t%.1f\t%d\t%d\t%d\t%s\t%s\t\n",
			p.Rank, p.EloRating, p.Wins, p.Losses, p.Draws, p.PaperID, shorten(p.Title, maxTitleWidth))
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// Save writes r to dir/name, creating dir if needed, and returns the path.
func Save(dir string, r Report, name string, f Format) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if err := Write(file, r, f); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}
	return path, nil
}
