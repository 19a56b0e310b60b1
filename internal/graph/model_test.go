package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConceptJSON(t *testing.T) {
	t.Parallel()

	t.Run("root parent is null", func(t *testing.T) {
		data, err := json.Marshal(Concept{ID: "Physics", Level: 0})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"Physics","level":0,"parent":null}`, string(data))
	})

	t.Run("child parent is a string", func(t *testing.T) {
		var c Concept
		require.NoError(t, json.Unmarshal([]byte(`{"id":"Optics","level":1,"parent":"Physics"}`), &c))
		assert.Equal(t, Concept{ID: "Optics", Level: 1, Parent: "Physics"}, c)
		assert.False(t, c.IsRoot())
	})
}

func TestDocumentJSON(t *testing.T) {
	t.Parallel()

	raw := `{
  "core": "Physics",
  "concepts": [
    {"id": "Physics", "level": 0, "parent": null},
    {"id": "Optics", "level": 1, "parent": "Physics"},
    {"id": "Lens", "level": 2, "parent": "Optics"}
  ],
  "relationships": {"Physics->Optics": 81.25, "Optics->Lens": 64.5, "garbage": 1}
}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "Physics", doc.Core)
	assert.Len(t, doc.Concepts, 3)
	assert.Equal(t, Relationships{
		Edge("Physics", "Optics"): 81.25,
		Edge("Optics", "Lens"):    64.5,
	}, doc.Relationships)

	out, err := json.Marshal(&doc)
	require.NoError(t, err)

	var again Document
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, doc, again)
}

func TestParseEdgeKey(t *testing.T) {
	t.Parallel()

	known := map[string]bool{"A->B": true, "C": true, "A": true}

	tests := []struct {
		name string
		raw  string
		want EdgeKey
		ok   bool
	}{
		{"simple", "A->C", Edge("A", "C"), true},
		{"parent contains delimiter", "A->B->C", Edge("A->B", "C"), true},
		{"unknown ids use first split", "X->Y->Z", Edge("X", "Y->Z"), true},
		{"no delimiter", "AC", EdgeKey{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseEdgeKey(tt.raw, known)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateNewID(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateNewID("Quantum Field Theory"))
	assert.ErrorIs(t, ValidateNewID("   "), ErrInvalidID)
	assert.ErrorIs(t, ValidateNewID("a->b"), ErrInvalidID)
}

func TestNewDocument(t *testing.T) {
	t.Parallel()

	doc := NewDocument("Biology")
	require.Len(t, doc.Concepts, 1)
	assert.Equal(t, Concept{ID: "Biology", Level: 0}, doc.Concepts[0])
	assert.NoError(t, doc.Validate())
}
