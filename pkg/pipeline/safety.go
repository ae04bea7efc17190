package pipeline

import (
	"strings"

	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

// DefaultForbiddenKeywords are always rejected, in the order they are reported.
var DefaultForbiddenKeywords = []string{
	"insert",
	"update",
	"delete",
	"drop",
	"alter",
	"truncate",
	"select *",
}

// SafetyGate is a case-insensitive substring denylist applied to every statement before it
// reaches the store. It is a textual filter, not a parser: a column named update_date is
// rejected too. Whitespace runs compare as a single space and whitespace next to '*' is
// ignored, so "SELECT  *\nFROM t" and "SELECT*FROM t" both match "select *".
type SafetyGate struct {
	keywords []string
	patterns []string // keywords after normalize, same order
}

// NewSafetyGate returns a gate over DefaultForbiddenKeywords plus any extra tokens. Extra tokens
// are lower-cased; empty and duplicate tokens are ignored.
func NewSafetyGate(extra ...string) *SafetyGate {
	seen := make(map[string]struct{}, len(DefaultForbiddenKeywords)+len(extra))
	keywords := make([]string, 0, len(DefaultForbiddenKeywords)+len(extra))
	for _, k := range append(append([]string{}, DefaultForbiddenKeywords...), extra...) {
		k = strings.ToLower(k)
		if strings.TrimSpace(k) == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}
	patterns := make([]string, len(keywords))
	for i, k := range keywords {
		patterns[i] = normalize(k)
	}
	return &SafetyGate{keywords: keywords, patterns: patterns}
}

// normalize lower-cases s, collapses whitespace runs to one space and drops the spaces
// around '*'.
func normalize(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	s = strings.ReplaceAll(s, " *", "*")
	return strings.ReplaceAll(s, "* ", "*")
}

// Keywords returns the denylist in match order.
func (g *SafetyGate) Keywords() []string {
	return append([]string(nil), g.keywords...)
}

// Validate returns *UnsafeQueryError naming the first denylisted token found in sql, or
// *InputError if sql is blank.
func (g *SafetyGate) Validate(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return &InputError{Msg: "no sql provided"}
	}
	text := normalize(sql)
	for i, k := range g.keywords {
		if strings.Contains(text, g.patterns[i]) {
			metrics.UnsafeQueriesTotal.WithLabelValues(k).Inc()
			return &UnsafeQueryError{Keyword: k}
		}
	}
	return nil
}
