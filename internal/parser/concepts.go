package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ConceptDraft is a concept as proposed by the model. The Has* flags record
// which keys were present so callers can reject incomplete batches.
type ConceptDraft struct {
	ID     string
	Level  int
	Parent string

	HasID     bool
	HasLevel  bool
	HasParent bool
}

// Complete reports whether id, level and parent were all present.
func (d ConceptDraft) Complete() bool {
	return d.HasID && d.HasLevel && d.HasParent
}

// ParseConceptArray decodes a JSON array of concept objects from text. It
// tries a strict parse first, then a fenced code block, then every
// bracket-balanced array embedded in the text.
func ParseConceptArray(text string) ([]ConceptDraft, error) {
	if drafts, ok := decodeDrafts(strings.TrimSpace(text)); ok {
		return drafts, nil
	}
	if fenced, ok := fencedBlock(text); ok {
		if drafts, ok := decodeDrafts(fenced); ok {
			return drafts, nil
		}
	}
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end := matchingBracket(text, start); end > start {
			candidate := text[start : end+1]
			if strings.Contains(candidate, "{") {
				if drafts, ok := decodeDrafts(candidate); ok {
					return drafts, nil
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrMalformed
}

func fencedBlock(s string) (string, bool) {
	if idx := strings.Index(s, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end]), true
		}
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		start := idx + 3
		if nl := strings.Index(s[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(s[start:], "```"); end != -1 {
			return strings.TrimSpace(s[start : start+end]), true
		}
	}
	return "", false
}

// matchingBracket returns the index of the ']' closing the '[' at start,
// skipping brackets inside JSON strings, or -1.
func matchingBracket(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeDrafts(s string) ([]ConceptDraft, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	drafts := make([]ConceptDraft, 0, len(raw))
	for _, obj := range raw {
		if obj == nil {
			return nil, false
		}
		var d ConceptDraft
		if v, ok := obj["id"]; ok {
			d.ID, d.HasID = decodeString(v), true
		}
		if v, ok := obj["level"]; ok {
			d.Level, d.HasLevel = decodeLevel(v)
		}
		if v, ok := obj["parent"]; ok {
			d.Parent, d.HasParent = decodeString(v), true
		}
		drafts = append(drafts, d)
	}
	return drafts, true
}

// decodeString returns the trimmed string in v, or "" for null and
// non-string values.
func decodeString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func decodeLevel(v json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		if f < 0 || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}
