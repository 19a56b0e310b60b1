package engine

import (
	"context"

	"github.com/Benny93/conceptmap-go/internal/embeddings"
	"github.com/Benny93/conceptmap-go/internal/graph"
)

// FillSimilarities scores every parent->child edge that has no similarity
// yet and returns the number of edges scored. The document is only saved
// when something changed.
func (e *Engine) FillSimilarities(ctx context.Context, doc *graph.Document) (_ *graph.Document, _ int, err error) {
	defer func() { e.metrics.RecordMutation("similarities", err) }()

	missing := doc.MissingEdges()
	if len(missing) == 0 {
		return doc, 0, nil
	}

	out := doc.Clone()
	e.scoreEdges(ctx, out, missing)
	e.persist("similarities", out)

	e.log.Info("similarities filled", "topic", doc.Core, "edges", len(missing))
	return out, len(missing), nil
}

// scoreEdges stores a similarity for each edge, batching the children of
// each parent into one embedding call. Degraded batches and failed scores
// store the neutral similarity.
func (e *Engine) scoreEdges(ctx context.Context, doc *graph.Document, edges []graph.EdgeKey) {
	if len(edges) == 0 {
		return
	}
	if doc.Relationships == nil {
		doc.Relationships = make(graph.Relationships, len(edges))
	}
	if e.embed == nil {
		for _, k := range edges {
			doc.Relationships[k] = embeddings.NeutralSimilarity
		}
		return
	}

	var parents []string
	children := make(map[string][]string)
	for _, k := range edges {
		if _, ok := children[k.Parent]; !ok {
			parents = append(parents, k.Parent)
		}
		children[k.Parent] = append(children[k.Parent], k.Child)
	}

	for _, parent := range parents {
		kids := children[parent]
		scores := e.embed.Similarities(ctx, parent, kids)
		for i, child := range kids {
			value := scores[i].Value
			if scores[i].Quality == embeddings.Degraded {
				value = embeddings.NeutralSimilarity
			}
			doc.Relationships[graph.Edge(parent, child)] = value
		}
		if len(scores) > 0 && scores[0].Quality == embeddings.Degraded {
			e.log.Warn("embeddings degraded, stored neutral similarity", "parent", parent, "edges", len(kids))
		}
	}
}
