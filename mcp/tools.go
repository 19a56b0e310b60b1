package mcp

import (
	"context"

	"github.com/Benny93/conceptmap-go/internal/engine"
	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/view"
)

// Tool Handlers

func (s *Server) handleGraph(ctx context.Context, args map[string]any) (*Result, error) {
	doc, err := s.session.Use(ctx, stringArg(args, "topic"), boolArg(args, "force"))
	if err != nil {
		return nil, err
	}
	if boolArg(args, "use_similarities") {
		doc, err = s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
			out, _, err := eng.FillSimilarities(ctx, doc)
			return out, err
		})
		if err != nil {
			return nil, err
		}
	}
	return s.result(doc, boolArg(args, "use_similarities")), nil
}

func (s *Server) handleAdd(ctx context.Context, args map[string]any) (*Result, error) {
	req := engine.AddRequest{
		ID:                stringArg(args, "id"),
		ComputeSimilarity: boolArg(args, "compute_similarity"),
	}
	if parent, ok := args["parent"].(string); ok && parent != "" {
		req.Parent = &parent
	}
	if level, ok := intArg(args, "level"); ok {
		req.Level = &level
	}

	var placement engine.Placement
	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, p, err := eng.AddConcept(ctx, doc, req)
		placement = p
		return out, err
	})
	if err != nil {
		return nil, err
	}
	res := s.result(doc, true)
	res.Placement = &placement
	return res, nil
}

func (s *Server) handleAutoAdd(ctx context.Context, args map[string]any) (*Result, error) {
	term := stringArg(args, "term")
	compute := boolArg(args, "compute_similarity")

	var placement engine.Placement
	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, p, err := eng.AutoAddTerm(ctx, doc, term, compute)
		placement = p
		return out, err
	})
	if err != nil {
		return nil, err
	}
	res := s.result(doc, true)
	res.Placement = &placement
	return res, nil
}

func (s *Server) handleDelete(ctx context.Context, args map[string]any) (*Result, error) {
	id := stringArg(args, "id")

	var removed []string
	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, r, err := eng.DeleteConcept(ctx, doc, id)
		removed = r
		return out, err
	})
	if err != nil {
		return nil, err
	}
	res := s.result(doc, true)
	res.Removed = removed
	return res, nil
}

func (s *Server) handleRename(ctx context.Context, args map[string]any) (*Result, error) {
	oldID, newID := stringArg(args, "old_id"), stringArg(args, "new_id")

	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		return eng.RenameConcept(ctx, doc, oldID, newID)
	})
	if err != nil {
		return nil, err
	}
	return s.result(doc, true), nil
}

func (s *Server) handleInsert(ctx context.Context, args map[string]any) (*Result, error) {
	req := engine.InsertRequest{
		Parent:            stringArg(args, "parent"),
		Child:             stringArg(args, "child"),
		ID:                stringArg(args, "id"),
		ComputeSimilarity: boolArg(args, "compute_similarity"),
	}

	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		return eng.InsertNodeBetween(ctx, doc, req)
	})
	if err != nil {
		return nil, err
	}
	return s.result(doc, true), nil
}

func (s *Server) handleExpand(ctx context.Context, args map[string]any) (*Result, error) {
	id := stringArg(args, "id")
	compute := boolArg(args, "compute_similarity")

	var added []string
	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, a, err := eng.ExpandNode(ctx, doc, id, compute)
		added = a
		return out, err
	})
	if err != nil {
		return nil, err
	}
	res := s.result(doc, true)
	res.Added = added
	return res, nil
}

func (s *Server) handleSimilarities(ctx context.Context) (*Result, error) {
	var scored int
	doc, err := s.session.Mutate(ctx, func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, n, err := eng.FillSimilarities(ctx, doc)
		scored = n
		return out, err
	})
	if err != nil {
		return nil, err
	}
	res := s.result(doc, true)
	res.Scored = &scored
	return res, nil
}

func (s *Server) handleSearch(ctx context.Context, args map[string]any) (*Result, error) {
	doc, err := s.session.Current(ctx)
	if err != nil {
		return nil, err
	}
	limit, ok := intArg(args, "limit")
	if !ok || limit <= 0 {
		limit = engine.DefaultSearchLimit
	}
	return &Result{
		Success: true,
		Topic:   doc.Core,
		Matches: s.session.Engine().SearchConcepts(ctx, doc, stringArg(args, "query"), limit),
	}, nil
}

func (s *Server) result(doc *graph.Document, useSimilarities bool) *Result {
	v := view.Project(doc, useSimilarities)
	return &Result{Success: true, Topic: doc.Core, Graph: &v}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
