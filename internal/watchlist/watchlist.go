// Package watchlist reconciles recognized plate text with the configured
// list of plates of interest.
package watchlist

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// Match is the outcome of a lookup. Entry is empty when nothing matched;
// FuzzyScore is nil for an exact hit.
type Match struct {
	Entry      string
	FuzzyScore *float64
}

// Found reports whether text matched an entry.
func (m Match) Found() bool { return m.Entry != "" }

// Fuzzy reports whether the hit came from similarity rather than equality.
func (m Match) Fuzzy() bool { return m.FuzzyScore != nil }

// Matcher compares text against a fixed watch list. Comparison is
// case-insensitive. The zero value matches nothing.
type Matcher struct {
	entries   []string
	threshold float64
}

// New builds a matcher. threshold <= 0 disables fuzzy matching.
func New(entries []string, threshold float64) *Matcher {
	m := &Matcher{threshold: threshold}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		m.entries = append(m.entries, e)
	}
	return m
}

// Len returns the number of watched entries.
func (m *Matcher) Len() int { return len(m.entries) }

// Match looks text up. An exact hit wins; otherwise the most similar entry
// at or above the threshold is returned, earliest entry first on ties.
func (m *Matcher) Match(text string) Match {
	if m == nil || len(m.entries) == 0 {
		return Match{}
	}
	candidate := strings.ToLower(strings.TrimSpace(text))
	if candidate == "" {
		return Match{}
	}

	for _, e := range m.entries {
		if e == candidate {
			GetLogger().Info("recognized plate is on the watch list", logger.String("plate", e))
			return Match{Entry: e}
		}
	}

	if m.threshold <= 0 {
		return Match{}
	}

	var (
		best      string
		bestRatio float64
	)
	chars := strings.Split(candidate, "")
	for _, e := range m.entries {
		ratio := Similarity(chars, strings.Split(e, ""))
		if ratio > bestRatio {
			best, bestRatio = e, ratio
		}
	}
	if best == "" || bestRatio < m.threshold {
		return Match{}
	}

	GetLogger().Info("fuzzy watch list match",
		logger.String("plate", candidate),
		logger.String("entry", best),
		logger.Float64("ratio", bestRatio))
	return Match{Entry: best, FuzzyScore: &bestRatio}
}

// Similarity is the SequenceMatcher ratio 2*M/T of two token sequences.
func Similarity(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

// GetLogger returns the watchlist module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("watchlist")
}
