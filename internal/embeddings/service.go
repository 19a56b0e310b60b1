// Package embeddings turns concept text into vectors and scores similarity.
//
// The Service never fails: when the backend is unavailable it returns
// random unit vectors and marks the batch Degraded so callers can tell a
// meaningless score from a real one.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Benny93/conceptmap-go/internal/logger"
	"github.com/Benny93/conceptmap-go/internal/metrics"
)

const (
	// NeutralSimilarity is used when a score cannot be computed.
	NeutralSimilarity = 70.0

	// DefaultBatchSize is the number of texts sent to the backend per call.
	DefaultBatchSize = 8

	// DefaultDimension is the width of degraded-mode vectors when the
	// backend has not reported one.
	DefaultDimension = 768
)

var (
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")
	ErrZeroVector        = errors.New("embeddings: zero vector")
	ErrNotFinite         = errors.New("embeddings: non-finite value")
)

// Backend computes embeddings. isQuery selects query-side encoding for
// models that distinguish queries from documents.
type Backend interface {
	Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)
	Name() string
}

// Cache stores vectors by key.
type Cache interface {
	GetEmbedding(key string) ([]float32, bool)
	PutEmbedding(key string, vec []float32) error
}

// Quality tells whether vectors came from the backend or are placeholders.
type Quality int

const (
	Normal Quality = iota
	Degraded
)

func (q Quality) String() string {
	if q == Degraded {
		return "degraded"
	}
	return "normal"
}

// Batch is the result of an Embed call, one vector per input.
type Batch struct {
	Vectors [][]float32
	Quality Quality
}

// Degraded reports whether the vectors are random placeholders.
func (b Batch) Degraded() bool {
	return b.Quality == Degraded
}

// Score is a similarity in [0, 100]. Fallback is set when the neutral
// score was substituted.
type Score struct {
	Value    float64
	Quality  Quality
	Fallback bool
}

// Options configures a Service.
type Options struct {
	BatchSize int
	Dimension int
	Cache     Cache

	// Rand seeds degraded-mode vectors. Nil uses a time-seeded source.
	Rand *rand.Rand
}

// Service batches, caches and scores embeddings.
type Service struct {
	backend   Backend
	cache     Cache
	batchSize int
	dim       int
	log       *logger.Logger
	metrics   *metrics.Collector

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a Service. log and m may be nil.
func NewService(backend Backend, opts Options, log *logger.Logger, m *metrics.Collector) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		backend:   backend,
		cache:     opts.Cache,
		batchSize: opts.BatchSize,
		dim:       opts.Dimension,
		log:       log.With("component", "embeddings", "backend", backend.Name()),
		metrics:   m,
		rng:       opts.Rand,
	}
}

// Embed returns one vector per text. On any backend failure every vector
// in the result is random and the batch is marked Degraded.
func (s *Service) Embed(ctx context.Context, texts []string, isQuery bool) Batch {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return Batch{Vectors: out}
	}

	keys := make([]string, len(texts))
	var missing []int
	for i, text := range texts {
		text = NormalizeText(text)
		keys[i] = s.cacheKey(text, isQuery)
		if s.cache != nil {
			if vec, ok := s.cache.GetEmbedding(keys[i]); ok {
				s.metrics.RecordCache(true)
				out[i] = vec
				continue
			}
			s.metrics.RecordCache(false)
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += s.batchSize {
		end := min(start+s.batchSize, len(missing))
		chunk := make([]string, 0, end-start)
		for _, idx := range missing[start:end] {
			chunk = append(chunk, NormalizeText(texts[idx]))
		}

		vecs, err := s.backend.Embed(ctx, chunk, isQuery)
		if err == nil {
			err = checkShape(vecs, len(chunk))
		}
		if err != nil {
			s.log.Warn("embedding backend failed, using random vectors", "error", err, "texts", len(texts))
			s.metrics.RecordEmbedding(Degraded.String())
			return Batch{Vectors: s.randomVectors(len(texts)), Quality: Degraded}
		}

		for j, idx := range missing[start:end] {
			out[idx] = vecs[j]
			if s.cache != nil {
				if err := s.cache.PutEmbedding(keys[idx], vecs[j]); err != nil {
					s.log.Debug("caching embedding failed", "error", err)
				}
			}
		}
		if len(vecs) > 0 {
			s.mu.Lock()
			s.dim = len(vecs[0])
			s.mu.Unlock()
		}
	}

	s.metrics.RecordEmbedding(Normal.String())
	return Batch{Vectors: out}
}

// Similarities scores parent against each child using one Embed call.
func (s *Service) Similarities(ctx context.Context, parent string, children []string) []Score {
	texts := append([]string{parent}, children...)
	batch := s.Embed(ctx, texts, false)

	scores := make([]Score, len(children))
	for i := range children {
		v, err := Cosine(batch.Vectors[0], batch.Vectors[i+1])
		if err != nil {
			s.log.Warn("similarity fell back to neutral score", "parent", parent, "child", children[i], "error", err)
			s.metrics.RecordSimilarityFallback()
			scores[i] = Score{Value: NeutralSimilarity, Quality: batch.Quality, Fallback: true}
			continue
		}
		scores[i] = Score{Value: v, Quality: batch.Quality}
	}
	return scores
}

// PairSimilarity scores two texts.
func (s *Service) PairSimilarity(ctx context.Context, a, b string) Score {
	return s.Similarities(ctx, a, []string{b})[0]
}

func (s *Service) cacheKey(text string, isQuery bool) string {
	mode := "d"
	if isQuery {
		mode = "q"
	}
	return s.backend.Name() + "|" + mode + "|" + text
}

func (s *Service) randomVectors(n int) [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]float32, n)
	for i := range out {
		vec := make([]float32, s.dim)
		var norm float64
		for j := range vec {
			v := s.rng.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		out[i] = vec
	}
	return out
}

func checkShape(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("backend returned %d vectors for %d texts", len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("backend returned empty vector at %d", i)
		}
		if len(v) != len(vecs[0]) {
			return fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), len(vecs[0]))
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b scaled to [0, 100].
// Both vectors are normalized explicitly; negative similarity clamps to 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	v := dot / (math.Sqrt(na) * math.Sqrt(nb)) * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return math.Max(0, math.Min(100, v)), nil
}

// Similarity is Cosine with NeutralSimilarity on failure.
func Similarity(a, b []float32) float64 {
	v, err := Cosine(a, b)
	if err != nil {
		return NeutralSimilarity
	}
	return v
}
