// Package search ranks concepts against a free-text query.
//
// Lexical matching works on tokens of the concept names; vector matching
// uses an HNSW index over concept embeddings. Both rankings are combined
// with reciprocal rank fusion.
package search

import (
	"regexp"
	"strings"
)

var (
	separatorRe  = regexp.MustCompile(`[_.\-/\s,;:()&]+`)
	camelRe      = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigit  = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetter  = regexp.MustCompile(`(\d)([a-zA-Z])`)
	stopwordList = map[string]bool{"a": true, "an": true, "and": true, "of": true, "the": true, "in": true, "for": true, "to": true}
)

// Tokenize splits text into lower-case search tokens. It splits on
// separators, camelCase humps and letter/digit boundaries and drops a
// small set of English stopwords.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = camelRe.ReplaceAllString(text, "$1 $2")
	text = letterDigit.ReplaceAllString(text, "$1 $2")
	text = digitLetter.ReplaceAllString(text, "$1 $2")

	seen := make(map[string]bool)
	var out []string
	for _, part := range separatorRe.Split(text, -1) {
		tok := strings.ToLower(part)
		if tok == "" || stopwordList[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
