package engine

import (
	"context"
	"fmt"

	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/parser"
)

// ExpandNode grows the hierarchy below nodeID. A leaf gets a two-level
// subtree; a node with children gets more direct children. Generated
// concepts that already exist are skipped. It returns the IDs added.
func (e *Engine) ExpandNode(ctx context.Context, doc *graph.Document, nodeID string, computeSimilarity bool) (_ *graph.Document, _ []string, err error) {
	defer func() { e.metrics.RecordMutation("expand", err) }()

	found := doc.Find(nodeID)
	if found == nil {
		return doc, nil, fmt.Errorf("node %q: %w", nodeID, ErrNotFound)
	}
	node := *found
	existing := doc.ChildrenOf(nodeID)
	leaf := len(existing) == 0

	var (
		prompt, failure string
		maxTokens       int
	)
	if leaf {
		prompt, maxTokens, failure = subtreePrompt(doc.Core, node, existing), subtreeTokens, "failed to generate subtree"
	} else {
		prompt, maxTokens, failure = childrenPrompt(doc.Core, node, existing), childrenTokens, "failed to generate additional children"
	}

	text, err := e.generate(ctx, prompt, maxTokens)
	if err != nil {
		e.log.Warn("expansion request failed", "node", nodeID, "error", err)
		return doc, nil, fmt.Errorf("%s: %w: %w", failure, ErrUpstream, err)
	}
	drafts, err := parser.ParseConceptArray(text)
	if err != nil {
		e.log.Warn("expansion response unparseable", "node", nodeID, "error", err)
		return doc, nil, fmt.Errorf("failed to parse generated concepts: %w", ErrMalformedResponse)
	}
	for _, d := range drafts {
		if !d.Complete() {
			return doc, nil, fmt.Errorf("invalid node structure in generated concepts: %w", ErrMalformedResponse)
		}
	}
	if !leaf {
		for i := range drafts {
			drafts[i].Parent = node.ID
			drafts[i].Level = node.Level + 1
		}
	}

	added := e.attachDrafts(doc, node, drafts)
	if len(added) == 0 {
		return doc, nil, fmt.Errorf("node %q: %w", nodeID, ErrNothingGenerated)
	}

	out := doc.Clone()
	out.Concepts = append(out.Concepts, added...)
	ids := make([]string, len(added))
	edges := make([]graph.EdgeKey, len(added))
	for i, c := range added {
		ids[i] = c.ID
		edges[i] = graph.Edge(c.Parent, c.ID)
	}
	if computeSimilarity {
		e.scoreEdges(ctx, out, edges)
	}
	e.persist("expand", out)

	e.log.Info("node expanded", "node", nodeID, "leaf", leaf, "added", len(ids))
	return out, ids, nil
}

// attachDrafts turns generated drafts into concepts below node. Drafts
// whose ID exists or repeats are dropped. A draft whose parent is neither
// node nor another accepted draft, or whose parent chain does not reach
// node, is attached to node directly. Levels are kept when deeper than the
// parent and set to parent+1 otherwise.
func (e *Engine) attachDrafts(doc *graph.Document, node graph.Concept, drafts []parser.ConceptDraft) []graph.Concept {
	accepted := make(map[string]bool, len(drafts))
	var out []graph.Concept
	for _, d := range drafts {
		switch {
		case graph.ValidateNewID(d.ID) != nil:
			e.log.Debug("skipping generated concept with invalid id", "id", d.ID)
			continue
		case doc.Has(d.ID) || accepted[d.ID]:
			e.log.Debug("skipping generated concept that already exists", "id", d.ID)
			continue
		}
		accepted[d.ID] = true
		out = append(out, graph.Concept{ID: d.ID, Level: d.Level, Parent: d.Parent})
	}

	parentOf := make(map[string]string, len(out))
	for i := range out {
		c := &out[i]
		if c.Parent != node.ID && (!accepted[c.Parent] || c.Parent == c.ID) {
			c.Parent = node.ID
		}
		parentOf[c.ID] = c.Parent
	}

	// every chain must end at node
	for i := range out {
		c := &out[i]
		seen := map[string]bool{c.ID: true}
		for p := c.Parent; p != node.ID; p = parentOf[p] {
			if seen[p] {
				c.Parent = node.ID
				parentOf[c.ID] = node.ID
				break
			}
			seen[p] = true
		}
	}

	levels := map[string]int{node.ID: node.Level}
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if l, ok := levels[id]; ok {
			return l
		}
		for i := range out {
			if out[i].ID != id {
				continue
			}
			pl := levelOf(out[i].Parent)
			if out[i].Level <= pl {
				out[i].Level = pl + 1
			}
			levels[id] = out[i].Level
			return out[i].Level
		}
		return node.Level
	}
	for _, c := range out {
		levelOf(c.ID)
	}
	return out
}
