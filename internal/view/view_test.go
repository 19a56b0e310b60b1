package view

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/conceptmap-go/internal/graph"
)

func testDocument() *graph.Document {
	return &graph.Document{
		Core: "Physics",
		Concepts: []graph.Concept{
			{ID: "Physics", Level: 0},
			{ID: "Optics", Level: 1, Parent: "Physics"},
			{ID: "Mechanics", Level: 1, Parent: "Physics"},
			{ID: "Lens", Level: 2, Parent: "Optics"},
			{ID: "Orphan", Level: 2, Parent: "Gone"},
		},
		Relationships: graph.Relationships{
			graph.Edge("Physics", "Optics"): 80,
			graph.Edge("Optics", "Lens"):    55,
		},
	}
}

func TestProjectWithSimilarities(t *testing.T) {
	t.Parallel()

	v := Project(testDocument(), true)

	require.Len(t, v.Nodes, 5)
	assert.Equal(t, Node{ID: "Lens", Level: 2, Group: 2}, v.Nodes[3])

	require.Len(t, v.Links, 4)

	optics := v.Links[0]
	assert.Equal(t, "Physics->Optics", optics.Key)
	require.NotNil(t, optics.Similarity)
	assert.InDelta(t, 0.8, *optics.Similarity, 1e-9)
	assert.InDelta(t, 0.2, optics.Dissonance, 1e-9)
	assert.Equal(t, optics.Dissonance, optics.Value)
	assert.Equal(t, LineSolid, optics.LineType)

	mechanics := v.Links[1]
	assert.Nil(t, mechanics.Similarity)
	assert.Equal(t, DefaultDissonance, mechanics.Dissonance)
	assert.Equal(t, LineSolid, mechanics.LineType)

	lens := v.Links[2]
	assert.InDelta(t, 0.45, lens.Dissonance, 1e-9)
	assert.Equal(t, LineDotted, lens.LineType)

	orphan := v.Links[3]
	assert.Equal(t, "Gone->Orphan", orphan.Key, "dangling parent is still linked")
	assert.Equal(t, "Gone", orphan.Source)
	assert.Nil(t, orphan.Similarity)
	assert.Equal(t, DefaultDissonance, orphan.Dissonance)
}

func TestProjectWithoutSimilarities(t *testing.T) {
	t.Parallel()

	v := Project(testDocument(), false)
	for _, l := range v.Links {
		assert.Nil(t, l.Similarity, l.Key)
		assert.Equal(t, DefaultDissonance, l.Value, l.Key)
		assert.Equal(t, LineSolid, l.LineType, l.Key)
	}
}

func TestViewJSON(t *testing.T) {
	t.Parallel()

	doc := graph.NewDocument("Physics")
	doc.Concepts = append(doc.Concepts, graph.Concept{ID: "Optics", Level: 1, Parent: "Physics"})

	data, err := json.Marshal(Project(doc, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nodes": [{"id":"Physics","level":0,"group":0},{"id":"Optics","level":1,"group":1}],
		"links": [{"source":"Physics","target":"Optics","similarity":null,"dissonance":0.3,"value":0.3,"line_type":"solid","key":"Physics->Optics"}]
	}`, string(data))
}
