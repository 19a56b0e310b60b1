// Package engine implements the concept graph mutations.
//
// Every operation takes the caller's document and returns a new one. The
// input is never modified: on failure the caller's document is returned
// unchanged together with the error. Successful mutations are persisted
// before they return; a failed write is logged and counted but does not
// fail the operation.
//
// The engine holds no document of its own and does no locking. Callers that
// share a document between goroutines must serialize mutations themselves
// (see package session).
package engine

import (
	"context"
	"errors"

	"github.com/Benny93/conceptmap-go/internal/embeddings"
	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/llm"
	"github.com/Benny93/conceptmap-go/internal/logger"
	"github.com/Benny93/conceptmap-go/internal/metrics"
)

var (
	// ErrNotFound is returned when a referenced concept does not exist.
	ErrNotFound = errors.New("concept not found")

	// ErrAlreadyExists is returned when a new ID collides with an existing concept.
	ErrAlreadyExists = errors.New("concept already exists")

	// ErrInvalidID is returned for IDs that are blank or contain the edge delimiter.
	ErrInvalidID = graph.ErrInvalidID

	// ErrInvalidLevel is returned for negative levels.
	ErrInvalidLevel = errors.New("invalid level")

	// ErrWouldCycle is returned when an insertion would make a concept its own ancestor.
	ErrWouldCycle = errors.New("operation would create a cycle")

	// ErrUpstream is returned when generation fails and no fallback exists.
	ErrUpstream = errors.New("generation service unavailable")

	// ErrMalformedResponse is returned when generated content cannot be used.
	ErrMalformedResponse = errors.New("malformed generation response")

	// ErrNothingGenerated is returned when every generated concept was rejected.
	ErrNothingGenerated = errors.New("no new concepts generated")
)

// Store persists documents.
type Store interface {
	Load(topic string) (*graph.Document, error)
	Save(doc *graph.Document) error
}

const (
	DefaultDepth   = 3
	DefaultBreadth = 5
)

// Options tunes hierarchy generation.
type Options struct {
	// Depth is the number of levels requested for a new hierarchy.
	Depth int

	// Breadth is the approximate number of concepts per level.
	Breadth int
}

// Engine runs graph mutations against a store, a text generator and an
// embedding service.
type Engine struct {
	store   Store
	gen     llm.Generator
	embed   *embeddings.Service
	opts    Options
	log     *logger.Logger
	metrics *metrics.Collector
}

// New creates an Engine. embed, log and m may be nil; without an embedding
// service every similarity is the neutral score.
func New(store Store, gen llm.Generator, embed *embeddings.Service, opts Options, log *logger.Logger, m *metrics.Collector) *Engine {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Breadth <= 0 {
		opts.Breadth = DefaultBreadth
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		store:   store,
		gen:     gen,
		embed:   embed,
		opts:    opts,
		log:     log.With("component", "engine"),
		metrics: m,
	}
}

// persist saves doc. Failures are logged and counted only.
func (e *Engine) persist(op string, doc *graph.Document) {
	err := e.store.Save(doc)
	e.metrics.RecordSnapshotWrite(err)
	if err != nil {
		e.log.Error("persisting snapshot failed, change is held in memory only",
			"op", op, "topic", doc.Core, "error", err)
	}
}

// generate calls the gateway. A nil generator behaves like an unreachable one.
func (e *Engine) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if e.gen == nil {
		return "", llm.ErrNotConfigured
	}
	return e.gen.Generate(ctx, prompt, maxTokens)
}
