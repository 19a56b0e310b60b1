// Package session owns the active concept document for a host process.
//
// A Session holds one document at a time, identified by its topic, and
// serializes every mutation against it. Switching topics replaces the
// document wholesale.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Benny93/conceptmap-go/internal/engine"
	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/logger"
	"github.com/Benny93/conceptmap-go/internal/storage"
)

// Loader reads the persisted document for a topic.
type Loader interface {
	Load(topic string) (*graph.Document, error)
}

// Session is safe for concurrent use.
type Session struct {
	engine *engine.Engine
	loader Loader
	log    *logger.Logger

	mu    sync.Mutex
	topic string
	doc   *graph.Document
}

// New creates a Session that opens defaultTopic on first use.
func New(eng *engine.Engine, loader Loader, defaultTopic string, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		engine: eng,
		loader: loader,
		log:    log.With("component", "session"),
		topic:  defaultTopic,
	}
}

// Engine returns the engine mutations run against.
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// Topic returns the active topic.
func (s *Session) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// Use makes topic the active document, loading or generating it. An empty
// topic keeps the active one. force regenerates even when the topic is
// already active.
func (s *Session) Use(ctx context.Context, topic string, force bool) (*graph.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topic == "" {
		topic = s.topic
	}
	if !force && s.doc != nil && s.topic == topic {
		return s.doc, nil
	}

	doc, err := s.engine.BuildOrLoad(ctx, topic, force)
	if err != nil {
		return nil, err
	}
	if s.topic != doc.Core {
		s.log.Info("switched topic", "from", s.topic, "to", doc.Core)
	}
	s.topic, s.doc = doc.Core, doc
	return doc, nil
}

// Current returns the active document, loading it if needed.
func (s *Session) Current(ctx context.Context) (*graph.Document, error) {
	return s.Use(ctx, "", false)
}

// MutateFunc applies one engine operation to doc.
type MutateFunc func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error)

// Mutate runs fn against the active document while holding the session
// lock and installs the document fn returns. On error the active document
// is left as it was.
func (s *Session) Mutate(ctx context.Context, fn MutateFunc) (*graph.Document, error) {
	if _, err := s.Current(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := fn(ctx, s.engine, s.doc)
	if err != nil {
		return s.doc, err
	}
	if doc == nil {
		return s.doc, errors.New("mutation returned no document")
	}
	s.topic, s.doc = doc.Core, doc
	return doc, nil
}

// Reload replaces the active document with the persisted one when the
// snapshot still belongs to the active topic and differs from it. It
// reports whether the document changed.
func (s *Session) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return false, nil
	}
	doc, err := s.loader.Load(s.topic)
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) || errors.Is(err, storage.ErrTopicMismatch) {
			s.log.Debug("snapshot no longer matches active topic, keeping document", "topic", s.topic, "reason", err)
			return false, nil
		}
		return false, fmt.Errorf("reloading snapshot: %w", err)
	}

	same, err := equal(s.doc, doc)
	if err != nil {
		return false, err
	}
	if same {
		return false, nil
	}
	s.doc = doc
	s.log.Info("reloaded document from snapshot", "topic", s.topic, "concepts", len(doc.Concepts))
	return true, nil
}

func equal(a, b *graph.Document) (bool, error) {
	ea, err := storage.Encode(a)
	if err != nil {
		return false, err
	}
	eb, err := storage.Encode(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}
