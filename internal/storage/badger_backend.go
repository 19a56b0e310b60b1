package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// prefixEmbedding namespaces embedding vectors.
const prefixEmbedding = "e:"

// BadgerCache is a BadgerDB-backed VectorCache.
type BadgerCache struct {
	mu sync.RWMutex
	db *badger.DB
}

// NewBadgerCache creates an unopened BadgerCache.
func NewBadgerCache() *BadgerCache {
	return &BadgerCache{}
}

// Initialize opens or creates the database at path.
func (b *BadgerCache) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	return nil
}

func (b *BadgerCache) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return fmt.Errorf("closing badger DB: %w", err)
	}
	return nil
}

func (b *BadgerCache) GetEmbedding(key string) ([]float32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, false
	}

	var vec []float32
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixEmbedding + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &vec)
		})
	})
	if err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (b *BadgerCache) PutEmbedding(key string, vec []float32) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return errors.New("badger cache not initialized")
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixEmbedding+key), data)
	}); err != nil {
		return fmt.Errorf("setting embedding: %w", err)
	}
	return nil
}

func (b *BadgerCache) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return 0
	}

	n := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEmbedding)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func (b *BadgerCache) Clear() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil
	}
	if err := b.db.DropPrefix([]byte(prefixEmbedding)); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	return nil
}
