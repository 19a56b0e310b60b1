package search

import (
	"fmt"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	kvector "github.com/kshard/vector"

	"github.com/Benny93/conceptmap-go/internal/embeddings"
)

// VectorIndex is an approximate nearest-neighbour index over concept
// vectors using cosine distance.
type VectorIndex struct {
	index *hnsw.HNSW[vector.VF32]
	ids   []string
	vecs  [][]float32
	dim   int
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		index: hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine())),
	}
}

// Add inserts the vector for id. Zero vectors are skipped because cosine
// distance is undefined for them.
func (v *VectorIndex) Add(id string, vec []float32) error {
	if v.dim != 0 && len(vec) != v.dim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", v.dim, len(vec))
	}
	if isZero(vec) {
		return nil
	}
	v.dim = len(vec)

	key := uint32(len(v.ids))
	v.ids = append(v.ids, id)
	v.vecs = append(v.vecs, vec)
	v.index.Insert(vector.VF32{Key: key, Vec: vec})
	return nil
}

// Len returns the number of indexed vectors.
func (v *VectorIndex) Len() int {
	return len(v.ids)
}

// Search returns up to k IDs nearest to vec, best first, scored by cosine
// similarity.
func (v *VectorIndex) Search(vec []float32, k int) ([]Result, error) {
	if len(v.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != v.dim {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", v.dim, len(vec))
	}

	ef := max(k*2, 100)
	hits := v.index.Search(vector.VF32{Vec: vec}, k, ef)

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if int(h.Key) >= len(v.ids) {
			continue
		}
		results = append(results, Result{
			ID:    v.ids[h.Key],
			Score: cosine(vec, v.vecs[h.Key]),
		})
	}
	return rank(results, k), nil
}

// cosine is embeddings.Cosine on a 0..1 scale; incomparable vectors score 0.
func cosine(a, b []float32) float64 {
	sim, err := embeddings.Cosine(a, b)
	if err != nil {
		return 0
	}
	return sim / 100
}

func isZero(vec []float32) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}
