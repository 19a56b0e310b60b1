// Package parser extracts structured data from free-form LLM responses.
//
// Responses are treated as untrusted text: every function here is total and
// signals failure through defaults or ErrMalformed rather than panicking.
package parser

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformed is returned when no usable structure can be recovered.
var ErrMalformed = errors.New("malformed response")

var (
	parentPattern = FieldPattern("PARENT")
	levelPattern  = regexp.MustCompile(`(?i)LEVEL:[ \t]*(\d+)`)
	reasonPattern = FieldPattern("REASON")
)

// FieldPattern returns a case-insensitive pattern capturing the rest of the
// line after "LABEL:".
func FieldPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `:[ \t]*(.+?)[ \t]*(?:\r?\n|$)`)
}

// ExtractField returns the first capture group of pattern in text, cleaned
// of decoration the model tends to echo back, or def when nothing usable
// matched.
func ExtractField(text string, pattern *regexp.Regexp, def string) string {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return def
	}
	v := cleanValue(m[1])
	if v == "" {
		return def
	}
	return v
}

// Parent extracts the PARENT field.
func Parent(text string) string {
	return ExtractField(text, parentPattern, "")
}

// Level extracts the LEVEL field as an integer, or def.
func Level(text string, def int) int {
	m := levelPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return def
	}
	n := 0
	for _, r := range m[1] {
		n = n*10 + int(r-'0')
		if n > 1<<20 {
			return def
		}
	}
	return n
}

// Reason extracts the REASON field, or def.
func Reason(text, def string) string {
	return ExtractField(text, reasonPattern, def)
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.Trim(s, " \t*`\"'[]")
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
