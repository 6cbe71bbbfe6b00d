package judge

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// TemplateFuncs returns the helpers available to judge prompt templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// join concatenates items with sep.
		// Template usage: {{join .Profile.Required ", "}}
		"join": func(items []string, sep string) string {
			return strings.Join(items, sep)
		},

		// orNone substitutes "None" for an empty list or string.
		// Template usage: {{orNone (join .Profile.Optional ", ")}}
		"orNone": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "None"
			}
			return s
		},

		// truncate limits s to n runes and appends "..." when it cut anything.
		// Template usage: {{truncate .PaperA.Abstract 300}}
		"truncate": func(s string, n int) string {
			if n <= 0 {
				return ""
			}
			if utf8.RuneCountInString(s) <= n {
				return s
			}
			r := []rune(s)
			if n > 3 {
				return string(r[:n-3]) + "..."
			}
			return string(r[:n])
		},

		// default returns fallback when s is empty.
		// Template usage: {{default "(No abstract available)" .PaperA.Abstract}}
		"default": func(fallback, s string) string {
			if s == "" {
				return fallback
			}
			return s
		},
	}
}
