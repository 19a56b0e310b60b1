package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
)

// trigramWeight scales character trigram features relative to whole terms.
const trigramWeight = 0.5

// LocalBackend embeds text without any external model. Terms and their
// character trigrams are hashed into a fixed number of buckets, weighted
// by normalized term frequency and L2 normalized. Vectors are stable
// across calls so they can be cached and compared freely.
type LocalBackend struct {
	dim int
}

// NewLocalBackend creates a LocalBackend producing vectors of width dim.
func NewLocalBackend(dim int) *LocalBackend {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &LocalBackend{dim: dim}
}

func (b *LocalBackend) Name() string {
	return fmt.Sprintf("local-%d", b.dim)
}

// Embed ignores isQuery; queries and documents share one space.
func (b *LocalBackend) Embed(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = b.embed(text)
	}
	return out, nil
}

func (b *LocalBackend) embed(text string) []float32 {
	vec := make([]float32, b.dim)

	tf := make(map[string]int)
	for _, term := range tokenize(text) {
		tf[term]++
	}
	maxTF := 0
	for _, n := range tf {
		maxTF = max(maxTF, n)
	}

	for term, n := range tf {
		weight := 0.5 + 0.5*float64(n)/float64(maxTF)
		b.add(vec, "t:"+term, weight)
		for _, g := range trigrams(term) {
			b.add(vec, "g:"+g, weight*trigramWeight)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 && !math.IsNaN(norm) {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func (b *LocalBackend) add(vec []float32, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(b.dim))
	// the top bit picks a sign so collisions cancel rather than accumulate
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += float32(weight)
}
