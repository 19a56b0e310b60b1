package engine

import (
	"context"
	"strings"

	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/search"
)

// DefaultSearchLimit caps SearchConcepts when limit is not positive.
const DefaultSearchLimit = 10

// SearchConcepts ranks the concepts of doc against query by fusing a
// lexical ranking with an embedding nearest-neighbour ranking. The vector
// ranking is skipped when embeddings are degraded or unavailable.
func (e *Engine) SearchConcepts(ctx context.Context, doc *graph.Document, query string, limit int) []search.Result {
	query = strings.TrimSpace(query)
	if query == "" || len(doc.Concepts) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	ids := doc.IDs()
	lexical := search.Lexical(ids, query, limit*2)

	vector := e.vectorRanking(ctx, ids, query, limit*2)
	if vector == nil {
		return search.Fuse(search.DefaultRRFK, limit, lexical)
	}
	return search.Fuse(search.DefaultRRFK, limit, lexical, vector)
}

func (e *Engine) vectorRanking(ctx context.Context, ids []string, query string, k int) []search.Result {
	if e.embed == nil {
		return nil
	}
	docs := e.embed.Embed(ctx, ids, false)
	if docs.Degraded() {
		e.log.Debug("skipping vector ranking, embeddings degraded")
		return nil
	}
	q := e.embed.Embed(ctx, []string{query}, true)
	if q.Degraded() {
		e.log.Debug("skipping vector ranking, query embedding degraded")
		return nil
	}

	idx := search.NewVectorIndex()
	for i, id := range ids {
		if err := idx.Add(id, docs.Vectors[i]); err != nil {
			e.log.Warn("vector index rejected concept", "id", id, "error", err)
			return nil
		}
	}
	results, err := idx.Search(q.Vectors[0], k)
	if err != nil {
		e.log.Warn("vector search failed", "error", err)
		return nil
	}
	return results
}
