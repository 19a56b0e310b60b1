package embeddings

import (
	"strings"
	"unicode"
)

// maxTextLen bounds the text sent to a backend.
const maxTextLen = 512

// NormalizeText collapses whitespace and truncates long inputs so that
// equivalent concept names share cache entries.
func NormalizeText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxTextLen {
		cut := maxTextLen
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// tokenize lower-cases text and splits it into alphanumeric terms of at
// least two characters.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	filtered := make([]string, 0, len(terms))
	for _, term := range terms {
		if len([]rune(term)) >= 2 {
			filtered = append(filtered, term)
		}
	}
	return filtered
}

// trigrams returns the padded character trigrams of a term.
func trigrams(term string) []string {
	runes := []rune("#" + term + "#")
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}
