// Package storage persists concept hierarchies and caches embeddings.
//
// Snapshots are whole-document JSON files replaced atomically on every
// write. Embedding vectors are cached in BadgerDB, or in memory for tests
// and ephemeral runs.
package storage

// VectorCache stores embedding vectors by key. It satisfies
// embeddings.Cache.
type VectorCache interface {
	// Initialize opens the cache at path. Memory caches ignore the path.
	Initialize(path string, readOnly bool) error

	// Close releases resources.
	Close() error

	// GetEmbedding returns the vector stored under key.
	GetEmbedding(key string) ([]float32, bool)

	// PutEmbedding stores vec under key.
	PutEmbedding(key string, vec []float32) error

	// Count returns the number of cached vectors.
	Count() int

	// Clear removes every cached vector.
	Clear() error
}

// NewVectorCache opens a badger cache at dir, or a memory cache when
// inMemory is set.
func NewVectorCache(dir string, inMemory bool) (VectorCache, error) {
	var c VectorCache = NewBadgerCache()
	if inMemory {
		c = NewMemoryCache()
	}
	if err := c.Initialize(dir, false); err != nil {
		return nil, err
	}
	return c, nil
}
