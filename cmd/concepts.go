package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Benny93/conceptmap-go/internal/engine"
	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/view"
	"github.com/Benny93/conceptmap-go/mcp"
)

// ShowCmd loads or generates the graph for the active topic.
type ShowCmd struct {
	Force        bool `short:"f" help:"Regenerate even when a snapshot exists"`
	Similarities bool `short:"s" help:"Compute missing similarities and show them"`
}

// Run executes the show command.
func (c *ShowCmd) Run(g *Globals) error {
	ctx := context.Background()
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.session.Use(ctx, "", c.Force)
	if err != nil {
		return err
	}
	if c.Similarities {
		doc, err = rt.session.Mutate(ctx, fillSimilarities(nil))
		if err != nil {
			return err
		}
	}

	if g.JSON {
		v := view.Project(doc, c.Similarities)
		return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Graph: &v})
	}
	printTree(g.out(), doc, c.Similarities)
	return nil
}

// AddCmd adds a concept.
type AddCmd struct {
	ID         string `arg:"" help:"Concept name"`
	Parent     string `short:"p" help:"Parent concept (placed by the model when omitted)"`
	Level      int    `short:"l" help:"Level override (negative derives it)" default:"-1"`
	Similarity bool   `short:"s" help:"Compute the similarity to the parent"`
}

// Run executes the add command.
func (c *AddCmd) Run(g *Globals) error {
	req := engine.AddRequest{ID: c.ID, ComputeSimilarity: c.Similarity}
	if c.Parent != "" {
		req.Parent = &c.Parent
	}
	if c.Level >= 0 {
		req.Level = &c.Level
	}

	var placement engine.Placement
	return g.mutate(func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, p, err := eng.AddConcept(ctx, doc, req)
		placement = p
		return out, err
	}, func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Placement: &placement})
		}
		g.success("Added %q under %q at level %d", c.ID, placement.Parent, placement.Level)
		return nil
	})
}

// AutoAddCmd lets the model place a term.
type AutoAddCmd struct {
	Term       string `arg:"" help:"Term to add"`
	Similarity bool   `short:"s" help:"Compute the similarity to the chosen parent"`
}

// Run executes the auto-add command.
func (c *AutoAddCmd) Run(g *Globals) error {
	var placement engine.Placement
	return g.mutate(func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, p, err := eng.AutoAddTerm(ctx, doc, c.Term, c.Similarity)
		placement = p
		return out, err
	}, func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Placement: &placement})
		}
		g.success("Added %q under %q at level %d", c.Term, placement.Parent, placement.Level)
		if placement.Reason != "" {
			fmt.Fprintf(g.out(), "  Reason: %s\n", placement.Reason)
		}
		return nil
	})
}

// DeleteCmd removes a concept and its subtree.
type DeleteCmd struct {
	ID string `arg:"" help:"Concept to delete"`
}

// Run executes the delete command.
func (c *DeleteCmd) Run(g *Globals) error {
	var removed []string
	return g.mutate(func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, r, err := eng.DeleteConcept(ctx, doc, c.ID)
		removed = r
		return out, err
	}, func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Removed: removed})
		}
		g.success("Deleted %d concept(s): %s", len(removed), strings.Join(removed, ", "))
		return nil
	})
}

// RenameCmd renames a concept.
type RenameCmd struct {
	OldID string `arg:"" name:"old" help:"Current name"`
	NewID string `arg:"" name:"new" help:"New name"`
}

// Run executes the rename command.
func (c *RenameCmd) Run(g *Globals) error {
	return g.mutate(func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		return eng.RenameConcept(ctx, doc, c.OldID, c.NewID)
	}, func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core})
		}
		g.success("Renamed %q to %q", c.OldID, c.NewID)
		return nil
	})
}

// InsertCmd inserts a concept on an existing edge.
type InsertCmd struct {
	Parent     string `arg:"" help:"Upper concept"`
	Child      string `arg:"" help:"Lower concept"`
	ID         string `arg:"" help:"Concept to insert"`
	Similarity bool   `short:"s" help:"Compute similarities for both new edges"`
}

// Run executes the insert command.
func (c *InsertCmd) Run(g *Globals) error {
	req := engine.InsertRequest{Parent: c.Parent, Child: c.Child, ID: c.ID, ComputeSimilarity: c.Similarity}
	return g.mutate(func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		return eng.InsertNodeBetween(ctx, doc, req)
	}, func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core})
		}
		g.success("Inserted %q between %q and %q", c.ID, c.Parent, c.Child)
		return nil
	})
}

// ExpandCmd generates children for a concept.
type ExpandCmd struct {
	ID         string `arg:"" help:"Concept to expand"`
	Similarity bool   `short:"s" help:"Compute similarities for the new edges"`
}

// Run executes the expand command.
func (c *ExpandCmd) Run(g *Globals) error {
	var added []string
	return g.mutate(func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, a, err := eng.ExpandNode(ctx, doc, c.ID, c.Similarity)
		added = a
		return out, err
	}, func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Added: added})
		}
		g.success("Expanded %q with %d concept(s)", c.ID, len(added))
		for _, id := range added {
			fmt.Fprintf(g.out(), "  + %s\n", id)
		}
		return nil
	})
}

// SimilaritiesCmd fills in missing similarity scores.
type SimilaritiesCmd struct{}

// Run executes the similarities command.
func (c *SimilaritiesCmd) Run(g *Globals) error {
	var scored int
	return g.mutate(fillSimilarities(&scored), func(doc *graph.Document) error {
		if g.JSON {
			return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Scored: &scored})
		}
		g.success("Scored %d relationship(s)", scored)
		return nil
	})
}

// QueryCmd searches concept names.
type QueryCmd struct {
	Query string `arg:"" help:"Search text"`
	Limit int    `short:"n" help:"Maximum results" default:"10"`
}

// Run executes the query command.
func (c *QueryCmd) Run(g *Globals) error {
	ctx := context.Background()
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.session.Current(ctx)
	if err != nil {
		return err
	}
	results := rt.session.Engine().SearchConcepts(ctx, doc, c.Query, c.Limit)

	if g.JSON {
		return g.printJSON(mcp.Result{Success: true, Topic: doc.Core, Matches: results})
	}
	if len(results) == 0 {
		fmt.Fprintf(g.out(), "No concepts match %q\n", c.Query)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(g.out(), "%2d. %s (%.4f)\n", i+1, r.ID, r.Score)
	}
	return nil
}

// mutate opens the runtime, applies fn to the active document and reports
// the outcome.
func (g *Globals) mutate(fn func(context.Context, *engine.Engine, *graph.Document) (*graph.Document, error), report func(*graph.Document) error) error {
	ctx := context.Background()
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.session.Mutate(ctx, fn)
	if err != nil {
		return err
	}
	return report(doc)
}

func fillSimilarities(scored *int) func(context.Context, *engine.Engine, *graph.Document) (*graph.Document, error) {
	return func(ctx context.Context, eng *engine.Engine, doc *graph.Document) (*graph.Document, error) {
		out, n, err := eng.FillSimilarities(ctx, doc)
		if scored != nil {
			*scored = n
		}
		return out, err
	}
}

// printTree renders doc as an indented outline starting at the root.
func printTree(w io.Writer, doc *graph.Document, withSimilarities bool) {
	root := doc.Root()
	if root == nil {
		fmt.Fprintf(w, "%s (empty)\n", doc.Core)
		return
	}
	bold := color.New(color.Bold)
	bold.Fprintln(w, root.ID)

	seen := map[string]bool{root.ID: true}
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		for _, child := range doc.ChildrenOf(id) {
			if seen[child] {
				continue
			}
			seen[child] = true

			line := strings.Repeat("  ", depth) + "- " + child
			if withSimilarities {
				if sim, ok := doc.Relationships[graph.Edge(id, child)]; ok {
					line += fmt.Sprintf(" (%.1f)", sim)
				}
			}
			fmt.Fprintln(w, line)
			walk(child, depth+1)
		}
	}
	walk(root.ID, 1)
}
