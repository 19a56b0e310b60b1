package search

import (
	"sort"
	"strings"
)

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

// Result is a ranked concept.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Lexical scores each ID by the share of query tokens it matches. Exact
// token matches count fully, prefix matches half; containing the whole
// query adds a bonus. IDs with no match are omitted.
func Lexical(ids []string, query string, limit int) []Result {
	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return nil
	}
	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	var results []Result
	for _, id := range ids {
		idTokens := Tokenize(id)
		score := 0.0
		for _, q := range qTokens {
			best := 0.0
			for _, tok := range idTokens {
				switch {
				case tok == q:
					best = 1
				case best < 0.5 && (strings.HasPrefix(tok, q) || strings.HasPrefix(q, tok)):
					best = 0.5
				}
			}
			score += best
		}
		score /= float64(len(qTokens))
		if strings.Contains(strings.ToLower(id), lowerQuery) {
			score += 0.5
		}
		if score > 0 {
			results = append(results, Result{ID: id, Score: score})
		}
	}
	return rank(results, limit)
}

// Fuse combines rankings with reciprocal rank fusion. Each list must be
// ordered best first.
func Fuse(k, limit int, lists ...[]Result) []Result {
	if k <= 0 {
		k = DefaultRRFK
	}
	scores := make(map[string]float64)
	var order []string
	for _, list := range lists {
		for i, r := range list {
			if _, ok := scores[r.ID]; !ok {
				order = append(order, r.ID)
			}
			scores[r.ID] += 1.0 / float64(k+i)
		}
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, Result{ID: id, Score: scores[id]})
	}
	return rank(results, limit)
}

// rank sorts by score descending, keeping input order for ties.
func rank(results []Result, limit int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
