package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/parser"
)

// AddRequest describes a new concept. Nil Parent asks the model for a
// placement; nil Level derives one.
type AddRequest struct {
	ID                string
	Parent            *string
	Level             *int
	ComputeSimilarity bool
}

// Placement is where a new concept was attached.
type Placement struct {
	Parent string `json:"parent"`
	Level  int    `json:"level"`

	// Reason is the model's justification, set by AutoAddTerm.
	Reason string `json:"reason,omitempty"`

	// Derived is set when the parent came from the model or a fallback.
	Derived bool `json:"derived"`
}

// AddConcept appends a concept. An explicit parent must exist; its level
// defaults to one below the parent. Without a parent the placement is
// asked from the model, fuzzy matched against existing IDs and falls back
// to the root at level 1.
func (e *Engine) AddConcept(ctx context.Context, doc *graph.Document, req AddRequest) (_ *graph.Document, _ Placement, err error) {
	defer func() { e.metrics.RecordMutation("add", err) }()

	id := strings.TrimSpace(req.ID)
	if err := graph.ValidateNewID(id); err != nil {
		return doc, Placement{}, err
	}
	if doc.Has(id) {
		return doc, Placement{}, fmt.Errorf("%w: %q", ErrAlreadyExists, id)
	}
	if req.Level != nil && *req.Level < 0 {
		return doc, Placement{}, fmt.Errorf("%w: %d", ErrInvalidLevel, *req.Level)
	}

	var p Placement
	if req.Parent == nil && doc.Root() == nil {
		return doc, Placement{}, fmt.Errorf("root %q: %w", doc.Core, ErrNotFound)
	}
	if req.Parent != nil {
		parent := doc.Find(*req.Parent)
		if parent == nil {
			return doc, Placement{}, fmt.Errorf("parent %q: %w", *req.Parent, ErrNotFound)
		}
		p = Placement{Parent: parent.ID, Level: parent.Level + 1}
		if req.Level != nil {
			p.Level = *req.Level
		}
	} else {
		p = e.placeConcept(ctx, doc, id)
		if req.Level != nil {
			p.Level = *req.Level
		}
	}

	out := doc.Clone()
	out.Concepts = append(out.Concepts, graph.Concept{ID: id, Level: p.Level, Parent: p.Parent})
	if req.ComputeSimilarity {
		e.scoreEdges(ctx, out, []graph.EdgeKey{graph.Edge(p.Parent, id)})
	}
	e.persist("add", out)

	e.log.Info("concept added", "id", id, "parent", p.Parent, "level", p.Level, "derived", p.Derived)
	return out, p, nil
}

// placeConcept asks the model where id belongs.
func (e *Engine) placeConcept(ctx context.Context, doc *graph.Document, id string) Placement {
	text, err := e.generate(ctx, placementPrompt(doc, id), placementTokens)
	if err != nil {
		e.log.Warn("placement request failed, defaulting to root", "id", id, "error", err)
		text = ""
	}
	return e.resolvePlacement(doc, parser.Parent(text), parser.Level(text, 1))
}

// resolvePlacement maps a proposed parent onto an existing concept and
// keeps the level below the parent. Callers ensure the document has a root.
func (e *Engine) resolvePlacement(doc *graph.Document, proposed string, level int) Placement {
	parentID := doc.Root().ID
	if match, ok := parser.FuzzyMatch(proposed, doc.IDs()); ok {
		parentID = match
	} else if proposed != "" {
		e.log.Debug("proposed parent not found, using root", "proposed", proposed)
	}

	parentLevel := 0
	if parent := doc.Find(parentID); parent != nil {
		parentLevel = parent.Level
	}
	if level <= parentLevel {
		level = parentLevel + 1
	}
	return Placement{Parent: parentID, Level: level, Derived: true}
}

// AutoAddTerm adds term under the parent the model considers best and
// returns the model's reason. When the model is unreachable the term goes
// under the root.
func (e *Engine) AutoAddTerm(ctx context.Context, doc *graph.Document, term string, computeSimilarity bool) (_ *graph.Document, _ Placement, err error) {
	defer func() { e.metrics.RecordMutation("auto_add", err) }()

	term = strings.TrimSpace(term)
	if err := graph.ValidateNewID(term); err != nil {
		return doc, Placement{}, err
	}
	if doc.Has(term) {
		return doc, Placement{}, fmt.Errorf("term already exists in the graph: %w", ErrAlreadyExists)
	}
	if doc.Root() == nil {
		return doc, Placement{}, fmt.Errorf("root %q: %w", doc.Core, ErrNotFound)
	}

	var p Placement
	text, genErr := e.generate(ctx, bestParentPrompt(doc, term), bestParentTokens)
	if genErr != nil {
		e.log.Warn("best-parent request failed, defaulting to root", "term", term, "error", genErr)
		p = e.resolvePlacement(doc, "", 1)
		p.Reason = autoAddFallbackReason
	} else {
		p = e.resolvePlacement(doc, parser.Parent(text), parser.Level(text, 1))
		p.Reason = parser.Reason(text, "")
	}

	out := doc.Clone()
	out.Concepts = append(out.Concepts, graph.Concept{ID: term, Level: p.Level, Parent: p.Parent})
	if computeSimilarity {
		e.scoreEdges(ctx, out, []graph.EdgeKey{graph.Edge(p.Parent, term)})
	}
	e.persist("auto_add", out)

	e.log.Info("term added", "id", term, "parent", p.Parent, "level", p.Level)
	return out, p, nil
}

// DeleteConcept removes id and its whole subtree, together with every
// relationship touching a removed concept. It returns the removed IDs,
// id first.
func (e *Engine) DeleteConcept(ctx context.Context, doc *graph.Document, id string) (_ *graph.Document, _ []string, err error) {
	defer func() { e.metrics.RecordMutation("delete", err) }()

	if !doc.Has(id) {
		return doc, nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	removed := append([]string{id}, doc.Descendants(id)...)
	out := doc.Clone()
	out.Remove(removed...)
	e.persist("delete", out)

	e.log.Info("concept deleted", "id", id, "removed", len(removed))
	return out, removed, nil
}

// RenameConcept changes a concept's ID, re-points its children and
// rewrites every relationship that mentions it.
func (e *Engine) RenameConcept(ctx context.Context, doc *graph.Document, oldID, newID string) (_ *graph.Document, err error) {
	defer func() { e.metrics.RecordMutation("rename", err) }()

	newID = strings.TrimSpace(newID)
	if err := graph.ValidateNewID(newID); err != nil {
		return doc, err
	}
	if !doc.Has(oldID) {
		return doc, fmt.Errorf("%q: %w", oldID, ErrNotFound)
	}
	if doc.Has(newID) {
		return doc, fmt.Errorf("%w: %q", ErrAlreadyExists, newID)
	}

	out := doc.Clone()
	out.Rename(oldID, newID)
	e.persist("rename", out)

	e.log.Info("concept renamed", "from", oldID, "to", newID)
	return out, nil
}

// InsertRequest splices ID between Parent and Child.
type InsertRequest struct {
	Parent            string
	Child             string
	ID                string
	ComputeSimilarity bool
}

// InsertNodeBetween places a new concept one level below Parent and moves
// Child under it. The child's subtree is pushed down when needed so every
// concept stays deeper than its parent. The Parent->Child relationship is
// dropped.
func (e *Engine) InsertNodeBetween(ctx context.Context, doc *graph.Document, req InsertRequest) (_ *graph.Document, err error) {
	defer func() { e.metrics.RecordMutation("insert", err) }()

	id := strings.TrimSpace(req.ID)
	if err := graph.ValidateNewID(id); err != nil {
		return doc, err
	}
	if doc.Has(id) {
		return doc, fmt.Errorf("%w: %q", ErrAlreadyExists, id)
	}
	parent, child := doc.Find(req.Parent), doc.Find(req.Child)
	if parent == nil {
		return doc, fmt.Errorf("parent %q: %w", req.Parent, ErrNotFound)
	}
	if child == nil {
		return doc, fmt.Errorf("child %q: %w", req.Child, ErrNotFound)
	}
	if req.Parent == req.Child {
		return doc, fmt.Errorf("%w: %q under itself", ErrWouldCycle, req.Child)
	}
	for _, d := range doc.Descendants(req.Child) {
		if d == req.Parent {
			return doc, fmt.Errorf("%w: %q is below %q", ErrWouldCycle, req.Parent, req.Child)
		}
	}

	out := doc.Clone()
	newLevel := parent.Level + 1
	oldParent := child.Parent

	if shift := newLevel + 1 - child.Level; shift > 0 {
		moved := append([]string{req.Child}, out.Descendants(req.Child)...)
		for _, m := range moved {
			out.Find(m).Level += shift
		}
	}

	out.Concepts = append(out.Concepts, graph.Concept{ID: id, Level: newLevel, Parent: req.Parent})
	out.Find(req.Child).Parent = id

	delete(out.Relationships, graph.Edge(req.Parent, req.Child))
	if oldParent != "" && oldParent != req.Parent {
		delete(out.Relationships, graph.Edge(oldParent, req.Child))
	}

	if req.ComputeSimilarity {
		e.scoreEdges(ctx, out, []graph.EdgeKey{
			graph.Edge(req.Parent, id),
			graph.Edge(id, req.Child),
		})
	}
	e.persist("insert", out)

	e.log.Info("concept inserted", "id", id, "parent", req.Parent, "child", req.Child)
	return out, nil
}
