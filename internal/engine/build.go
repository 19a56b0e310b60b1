package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/parser"
	"github.com/Benny93/conceptmap-go/internal/storage"
)

type buildConfig struct {
	similarities bool
}

// BuildOption customizes BuildOrLoad.
type BuildOption func(*buildConfig)

// WithSimilarities scores every edge of a freshly generated hierarchy
// before it is saved.
func WithSimilarities() BuildOption {
	return func(c *buildConfig) { c.similarities = true }
}

// BuildOrLoad returns the stored document for topic, or generates, saves
// and returns a new one when none matches or force is set. Generation
// never fails: without a usable response the document holds only the root.
func (e *Engine) BuildOrLoad(ctx context.Context, topic string, force bool, opts ...BuildOption) (*graph.Document, error) {
	topic = strings.TrimSpace(topic)
	if err := graph.ValidateNewID(topic); err != nil {
		err = fmt.Errorf("topic: %w", err)
		e.metrics.RecordMutation("build", err)
		return nil, err
	}

	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if !force {
		doc, err := e.store.Load(topic)
		switch {
		case err == nil:
			e.log.Debug("loaded snapshot", "topic", topic, "concepts", len(doc.Concepts))
			return doc, nil
		case errors.Is(err, storage.ErrNoSnapshot), errors.Is(err, storage.ErrTopicMismatch):
			e.log.Info("no snapshot for topic, generating hierarchy", "topic", topic, "reason", err)
		default:
			e.log.Warn("snapshot unreadable, regenerating hierarchy", "topic", topic, "error", err)
		}
	}

	doc := e.generateHierarchy(ctx, topic)
	if cfg.similarities {
		e.scoreEdges(ctx, doc, doc.MissingEdges())
	}
	e.persist("build", doc)
	e.metrics.RecordMutation("build", nil)
	return doc, nil
}

func (e *Engine) generateHierarchy(ctx context.Context, topic string) *graph.Document {
	doc := graph.NewDocument(topic)

	text, err := e.generate(ctx, hierarchyPrompt(topic, e.opts.Depth, e.opts.Breadth), hierarchyTokens)
	if err != nil {
		e.log.Warn("hierarchy generation failed, using root-only document", "topic", topic, "error", err)
		return doc
	}
	drafts, err := parser.ParseConceptArray(text)
	if err != nil {
		e.log.Warn("hierarchy response unparseable, using root-only document", "topic", topic, "error", err)
		return doc
	}

	doc.Concepts = doc.Concepts[:0]
	for _, d := range drafts {
		if !d.HasID {
			continue
		}
		if err := graph.ValidateNewID(d.ID); err != nil {
			e.log.Debug("dropping generated concept", "id", d.ID, "error", err)
			continue
		}
		doc.Concepts = append(doc.Concepts, graph.Concept{ID: d.ID, Level: d.Level, Parent: d.Parent})
	}
	if fixes := doc.Repair(); len(fixes) > 0 {
		e.log.Debug("repaired generated hierarchy", "topic", topic, "fixes", len(fixes))
	}
	e.log.Info("generated hierarchy", "topic", topic, "concepts", len(doc.Concepts))
	return doc
}
