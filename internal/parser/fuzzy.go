package parser

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// MatchCutoff is the minimum similarity ratio for a fuzzy match.
const MatchCutoff = 0.6

// FuzzyMatch resolves candidate against known IDs. An exact match wins,
// then a case-insensitive one, then the highest character-sequence ratio
// at or above MatchCutoff. Equal ratios keep the earlier ID in known.
func FuzzyMatch(candidate string, known []string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	for _, k := range known {
		if k == candidate {
			return k, true
		}
	}
	for _, k := range known {
		if strings.EqualFold(k, candidate) {
			return k, true
		}
	}

	m := difflib.NewMatcher(nil, chars(candidate))
	best, bestRatio := "", 0.0
	for _, k := range known {
		m.SetSeq1(chars(k))
		if m.RealQuickRatio() < MatchCutoff || m.QuickRatio() < MatchCutoff {
			continue
		}
		if r := m.Ratio(); r >= MatchCutoff && r > bestRatio {
			best, bestRatio = k, r
		}
	}
	return best, best != ""
}

// Ratio returns the similarity ratio of two strings in [0, 1], compared
// case-insensitively.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	return strings.Split(strings.ToLower(s), "")
}
