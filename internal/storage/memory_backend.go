package storage

import (
	"sync"
)

// MemoryCache is an in-memory VectorCache.
type MemoryCache struct {
	mu         sync.RWMutex
	embeddings map[string][]float32
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{embeddings: make(map[string][]float32)}
}

func (m *MemoryCache) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embeddings == nil {
		m.embeddings = make(map[string][]float32)
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = nil
	return nil
}

func (m *MemoryCache) GetEmbedding(key string) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.embeddings[key]
	return vec, ok
}

func (m *MemoryCache) PutEmbedding(key string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embeddings == nil {
		m.embeddings = make(map[string][]float32)
	}
	m.embeddings[key] = append([]float32(nil), vec...)
	return nil
}

func (m *MemoryCache) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings)
}

func (m *MemoryCache) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = make(map[string][]float32)
	return nil
}
