package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyMatch(t *testing.T) {
	t.Parallel()

	known := []string{"Machine Learning", "Neural Networks", "Neural Network Training", "Statistics"}

	tests := []struct {
		name      string
		candidate string
		want      string
		ok        bool
	}{
		{"exact", "Statistics", "Statistics", true},
		{"case-insensitive", "neural networks", "Neural Networks", true},
		{"close spelling", "Neural Netwrks", "Neural Networks", true},
		{"singular", "Neural Network", "Neural Networks", true},
		{"too different", "Quantum Chromodynamics", "", false},
		{"blank", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FuzzyMatch(tt.candidate, known)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuzzyMatchTieKeepsFirst(t *testing.T) {
	t.Parallel()

	got, ok := FuzzyMatch("abcx", []string{"abcy", "abcz"})
	assert.True(t, ok)
	assert.Equal(t, "abcy", got)
}

func TestRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Ratio("Optics", "optics"))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	assert.InDelta(t, 0.75, Ratio("abcx", "abcy"), 1e-9)
}
