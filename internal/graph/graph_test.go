package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleDocument builds:
//
//	ML
//	├── Supervised
//	│   ├── Regression
//	│   └── Classification
//	│       └── SVM
//	└── Unsupervised
func sampleDocument() *Document {
	return &Document{
		Core: "ML",
		Concepts: []Concept{
			{ID: "ML", Level: 0},
			{ID: "Supervised", Level: 1, Parent: "ML"},
			{ID: "Unsupervised", Level: 1, Parent: "ML"},
			{ID: "Regression", Level: 2, Parent: "Supervised"},
			{ID: "Classification", Level: 2, Parent: "Supervised"},
			{ID: "SVM", Level: 3, Parent: "Classification"},
		},
		Relationships: Relationships{
			Edge("ML", "Supervised"):             80,
			Edge("Supervised", "Classification"): 75,
			Edge("Classification", "SVM"):        60,
		},
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	clone := doc.Clone()

	clone.Concepts[1].ID = "changed"
	clone.Relationships[Edge("x", "y")] = 1

	assert.Equal(t, "Supervised", doc.Concepts[1].ID)
	assert.NotContains(t, doc.Relationships, Edge("x", "y"))
}

func TestLookups(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()

	assert.True(t, doc.Has("SVM"))
	assert.False(t, doc.Has("svm"))
	assert.Nil(t, doc.Find("svm"))
	require.NotNil(t, doc.FindFold("svm"))
	assert.Equal(t, "SVM", doc.FindFold("svm").ID)
	assert.Equal(t, "ML", doc.Root().ID)
	assert.Equal(t, []string{"Regression", "Classification"}, doc.ChildrenOf("Supervised"))
	assert.True(t, doc.IsLeaf("Regression"))
	assert.False(t, doc.IsLeaf("Classification"))
	assert.Equal(t, -1, doc.Index("missing"))
}

func TestDescendants(t *testing.T) {
	t.Parallel()

	t.Run("transitive", func(t *testing.T) {
		doc := sampleDocument()
		assert.Equal(t, []string{"Regression", "Classification", "SVM"}, doc.Descendants("Supervised"))
		assert.Empty(t, doc.Descendants("SVM"))
	})

	t.Run("child listed before parent", func(t *testing.T) {
		doc := &Document{
			Core: "R",
			Concepts: []Concept{
				{ID: "R"},
				{ID: "grandchild", Level: 2, Parent: "child"},
				{ID: "child", Level: 1, Parent: "R"},
			},
		}
		assert.ElementsMatch(t, []string{"grandchild", "child"}, doc.Descendants("R"))
	})
}

func TestByLevel(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	groups := doc.ByLevel()

	assert.Equal(t, []string{"Supervised", "Unsupervised"}, groups[1])
	assert.Equal(t, []string{"Classification", "Regression"}, groups[2])
	assert.Equal(t, []int{0, 1, 2, 3}, doc.Levels())
}

func TestRemove(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	ids := append([]string{"Classification"}, doc.Descendants("Classification")...)

	assert.Equal(t, 2, doc.Remove(ids...))
	assert.False(t, doc.Has("SVM"))
	assert.Equal(t, Relationships{Edge("ML", "Supervised"): 80}, doc.Relationships)
	assert.NoError(t, doc.Validate())
}

func TestRename(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	require.True(t, doc.Rename("Classification", "Classifiers"))

	assert.False(t, doc.Has("Classification"))
	assert.Equal(t, "Classifiers", doc.Find("SVM").Parent)
	assert.Equal(t, 75.0, doc.Relationships[Edge("Supervised", "Classifiers")])
	assert.Equal(t, 60.0, doc.Relationships[Edge("Classifiers", "SVM")])
	assert.NotContains(t, doc.Relationships, Edge("Supervised", "Classification"))
	assert.NoError(t, doc.Validate())

	assert.False(t, doc.Rename("missing", "x"))
}

func TestRenameRoot(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	require.True(t, doc.Rename("ML", "Machine Learning"))

	assert.Equal(t, "ML", doc.Core, "the topic is not renamed")
	require.NotNil(t, doc.Root())
	assert.Equal(t, "Machine Learning", doc.Root().ID)
	assert.Equal(t, []string{"Supervised", "Unsupervised"}, doc.ChildrenOf("Machine Learning"))
	assert.Equal(t, 80.0, doc.Relationships[Edge("Machine Learning", "Supervised")])
	assert.NoError(t, doc.Validate())
}

func TestRootMissing(t *testing.T) {
	t.Parallel()

	doc := &Document{Core: "ML", Concepts: []Concept{}, Relationships: Relationships{}}
	assert.Nil(t, doc.Root())
	assert.ErrorContains(t, doc.Validate(), `root concept "ML" missing`)
}

func TestMissingEdges(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	assert.Equal(t, []EdgeKey{
		Edge("ML", "Unsupervised"),
		Edge("Supervised", "Regression"),
	}, doc.MissingEdges())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, sampleDocument().Validate())

	doc := sampleDocument()
	doc.Concepts = append(doc.Concepts,
		Concept{ID: "SVM", Level: 3, Parent: "Classification"},
		Concept{ID: "Orphan", Level: 1, Parent: "Nowhere"},
	)
	doc.Relationships[Edge("ML", "SVM")] = 10

	err := doc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate concept "SVM"`)
	assert.Contains(t, err.Error(), `missing parent "Nowhere"`)
	assert.Contains(t, err.Error(), `"ML->SVM" does not match`)
}

func TestRepair(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Core: "Chemistry",
		Concepts: []Concept{
			{ID: "Organic", Level: 1, Parent: "Chemistry"},
			{ID: "Organic", Level: 1, Parent: "Chemistry"},
			{ID: "  ", Level: 1},
			{ID: "Alkanes", Level: 1, Parent: "Organic"},
			{ID: "Loose", Level: 4, Parent: "Unknown"},
			{ID: "A", Level: 2, Parent: "B"},
			{ID: "B", Level: 2, Parent: "A"},
		},
		Relationships: Relationships{
			Edge("Chemistry", "Organic"): 90,
			Edge("Chemistry", "Alkanes"): 50,
		},
	}

	fixes := doc.Repair()
	assert.NotEmpty(t, fixes)
	require.NoError(t, doc.Validate())

	assert.Equal(t, Concept{ID: "Chemistry"}, doc.Concepts[0])
	assert.Equal(t, 2, doc.Find("Alkanes").Level)
	assert.Equal(t, "Chemistry", doc.Find("Loose").Parent)
	assert.Equal(t, 4, doc.Find("Loose").Level)
	assert.Equal(t, Relationships{Edge("Chemistry", "Organic"): 90}, doc.Relationships)

	// the cycle is broken at one member and the other hangs below it
	a, b := doc.Find("A"), doc.Find("B")
	assert.True(t, a.Parent == "Chemistry" || b.Parent == "Chemistry")
	assert.Len(t, doc.Concepts, 6)
}
