// Package view projects a concept document into the node/link form consumed
// by force-directed graph renderers.
package view

import (
	"github.com/Benny93/conceptmap-go/internal/graph"
)

const (
	// DefaultDissonance is used for links without a known similarity.
	DefaultDissonance = 0.3

	LineSolid  = "solid"
	LineDotted = "dotted"
)

// Node is a rendered concept.
type Node struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	Group int    `json:"group"`
}

// Link is a rendered parent->child edge. Similarity is on a 0..1 scale and
// nil when unknown.
type Link struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Similarity *float64 `json:"similarity"`
	Dissonance float64  `json:"dissonance"`
	Value      float64  `json:"value"`
	LineType   string   `json:"line_type"`
	Key        string   `json:"key"`
}

// View is the full projection.
type View struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Project builds the view for doc. Stored similarities are only used when
// useSimilarities is set. Every concept with a parent gets a link, even when
// the parent is not a concept of doc.
func Project(doc *graph.Document, useSimilarities bool) View {
	v := View{
		Nodes: make([]Node, 0, len(doc.Concepts)),
		Links: make([]Link, 0, len(doc.Concepts)),
	}

	for _, c := range doc.Concepts {
		v.Nodes = append(v.Nodes, Node{ID: c.ID, Level: c.Level, Group: c.Level})
	}

	for _, c := range doc.Concepts {
		if c.IsRoot() {
			continue
		}
		key := graph.Edge(c.Parent, c.ID)
		link := Link{
			Source:     c.Parent,
			Target:     c.ID,
			Dissonance: DefaultDissonance,
			LineType:   LineSolid,
			Key:        key.String(),
		}
		if sim, ok := doc.Relationships[key]; ok && useSimilarities {
			scaled := sim / 100
			link.Similarity = &scaled
			link.Dissonance = (100 - sim) / 100
			if link.Dissonance > DefaultDissonance {
				link.LineType = LineDotted
			}
		}
		link.Value = link.Dissonance
		v.Links = append(v.Links, link)
	}
	return v
}
