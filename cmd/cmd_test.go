package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/conceptmap-go/internal/engine"
	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/mcp"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const physicsHierarchy = `[
  {"id": "Physics", "level": 0, "parent": null},
  {"id": "Mechanics", "level": 1, "parent": "Physics"},
  {"id": "Optics", "level": 1, "parent": "Physics"},
  {"id": "Kinematics", "level": 2, "parent": "Mechanics"}
]`

// fakeLLM answers the prompts the engine sends with canned text.
func fakeLLM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[0].Content

		var text string
		switch {
		case strings.Contains(prompt, "Generate a concept hierarchy"):
			text = physicsHierarchy
		case strings.Contains(prompt, "Which EXISTING concept"):
			text = "PARENT: Mechanics\nLEVEL: 2\nREASON: Momentum describes motion"
		case strings.Contains(prompt, "What should be the PARENT"):
			text = "PARENT: optics\nLEVEL: 2"
		case strings.Contains(prompt, "expand the node"):
			text = "```json\n" + `[{"id":"Lenses","level":2,"parent":"Optics"},{"id":"Refraction","level":2,"parent":"Optics"}]` + "\n```"
		default:
			http.Error(w, "unexpected prompt", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testGlobals points the configuration at a fake gateway and a fresh data
// directory. Tests using it cannot run in parallel because of t.Setenv.
func testGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	srv := fakeLLM(t)

	t.Setenv("CONCEPTMAP_CONFIG", "")
	t.Setenv("CONCEPTMAP_DATA_DIR", "")
	t.Setenv("CONCEPTMAP_TOPIC", "")
	t.Setenv("CONCEPTMAP_EMBED_PROVIDER", "tfidf")
	t.Setenv("CONCEPTMAP_LOG_MODE", "prod")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("CONCEPTMAP_LLM_URL", srv.URL)

	var out bytes.Buffer
	return &Globals{
		DataDir: t.TempDir(),
		Topic:   "Physics",
		stdout:  &out,
	}, &out
}

func loadSnapshot(t *testing.T, g *Globals) *graph.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(g.DataDir, "concept_graph_data.json"))
	require.NoError(t, err)
	var doc graph.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return &doc
}

func decodeResult(t *testing.T, out *bytes.Buffer) mcp.Result {
	t.Helper()
	var res mcp.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	out.Reset()
	return res
}

func TestShowCmd_Run(t *testing.T) {
	t.Run("GeneratesAndPrintsTree", func(t *testing.T) {
		g, out := testGlobals(t)

		require.NoError(t, (&ShowCmd{}).Run(g))

		assert.Contains(t, out.String(), "Physics\n")
		assert.Contains(t, out.String(), "  - Mechanics\n")
		assert.Contains(t, out.String(), "    - Kinematics\n")

		doc := loadSnapshot(t, g)
		assert.Equal(t, "Physics", doc.Core)
		assert.Len(t, doc.Concepts, 4)
		assert.Empty(t, doc.Relationships)
	})

	t.Run("JSONWithSimilarities", func(t *testing.T) {
		g, out := testGlobals(t)
		g.JSON = true

		require.NoError(t, (&ShowCmd{Similarities: true}).Run(g))

		res := decodeResult(t, out)
		assert.True(t, res.Success)
		require.NotNil(t, res.Graph)
		assert.Len(t, res.Graph.Nodes, 4)
		require.Len(t, res.Graph.Links, 3)
		for _, link := range res.Graph.Links {
			assert.NotNil(t, link.Similarity)
		}
		assert.Len(t, loadSnapshot(t, g).Relationships, 3)
	})
}

func TestMutationCommands(t *testing.T) {
	g, out := testGlobals(t)
	require.NoError(t, (&ShowCmd{}).Run(g))
	out.Reset()

	t.Run("AddWithParent", func(t *testing.T) {
		require.NoError(t, (&AddCmd{ID: "Dynamics", Parent: "Mechanics", Level: -1, Similarity: true}).Run(g))
		assert.Contains(t, out.String(), `Added "Dynamics" under "Mechanics" at level 2`)
		out.Reset()

		doc := loadSnapshot(t, g)
		c := doc.Find("Dynamics")
		require.NotNil(t, c)
		assert.Equal(t, 2, c.Level)
		assert.Contains(t, doc.Relationships, graph.Edge("Mechanics", "Dynamics"))
	})

	t.Run("AddPlacedByModel", func(t *testing.T) {
		g.JSON = true
		defer func() { g.JSON = false }()

		require.NoError(t, (&AddCmd{ID: "Photons", Level: -1}).Run(g))
		res := decodeResult(t, out)
		require.NotNil(t, res.Placement)
		assert.Equal(t, "Optics", res.Placement.Parent)
		assert.Equal(t, 2, res.Placement.Level)
	})

	t.Run("AddDuplicateFails", func(t *testing.T) {
		err := (&AddCmd{ID: "Optics", Level: -1}).Run(g)
		assert.ErrorIs(t, err, engine.ErrAlreadyExists)
	})

	t.Run("AutoAdd", func(t *testing.T) {
		require.NoError(t, (&AutoAddCmd{Term: "Momentum"}).Run(g))
		assert.Contains(t, out.String(), `Added "Momentum" under "Mechanics"`)
		assert.Contains(t, out.String(), "Reason: Momentum describes motion")
		out.Reset()
	})

	t.Run("Rename", func(t *testing.T) {
		require.NoError(t, (&RenameCmd{OldID: "Photons", NewID: "Light Quanta"}).Run(g))
		out.Reset()

		doc := loadSnapshot(t, g)
		assert.False(t, doc.Has("Photons"))
		assert.True(t, doc.Has("Light Quanta"))
	})

	t.Run("Insert", func(t *testing.T) {
		require.NoError(t, (&InsertCmd{Parent: "Mechanics", Child: "Kinematics", ID: "Motion"}).Run(g))
		out.Reset()

		doc := loadSnapshot(t, g)
		assert.Equal(t, "Motion", doc.Find("Kinematics").Parent)
		assert.Equal(t, 3, doc.Find("Kinematics").Level)
		assert.Equal(t, 2, doc.Find("Motion").Level)
	})

	t.Run("Expand", func(t *testing.T) {
		g.JSON = true
		defer func() { g.JSON = false }()

		require.NoError(t, (&ExpandCmd{ID: "Light Quanta"}).Run(g))
		res := decodeResult(t, out)
		assert.ElementsMatch(t, []string{"Lenses", "Refraction"}, res.Added)

		doc := loadSnapshot(t, g)
		assert.Equal(t, "Light Quanta", doc.Find("Lenses").Parent)
		assert.Equal(t, 3, doc.Find("Lenses").Level)
	})

	t.Run("Similarities", func(t *testing.T) {
		require.NoError(t, (&SimilaritiesCmd{}).Run(g))
		assert.Contains(t, out.String(), "Scored ")
		out.Reset()

		assert.Empty(t, loadSnapshot(t, g).MissingEdges())
	})

	t.Run("Query", func(t *testing.T) {
		require.NoError(t, (&QueryCmd{Query: "kinematics", Limit: 3}).Run(g))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		out.Reset()
		require.NotEmpty(t, lines)
		assert.Contains(t, lines[0], "Kinematics")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, (&DeleteCmd{ID: "Mechanics"}).Run(g))
		assert.Contains(t, out.String(), "Deleted ")
		out.Reset()

		doc := loadSnapshot(t, g)
		for _, id := range []string{"Mechanics", "Dynamics", "Momentum", "Motion", "Kinematics"} {
			assert.False(t, doc.Has(id), id)
		}
		assert.True(t, doc.Has("Optics"))
		assert.NoError(t, doc.Validate())
	})

	t.Run("DeleteUnknownFails", func(t *testing.T) {
		err := (&DeleteCmd{ID: "Astrology"}).Run(g)
		assert.ErrorIs(t, err, engine.ErrNotFound)
	})
}

func TestExecute(t *testing.T) {
	g, _ := testGlobals(t)

	t.Run("RunsCommandWithGlobalFlags", func(t *testing.T) {
		cli := NewCLI()
		var out bytes.Buffer
		cli.stdout = &out

		err := cli.Execute([]string{"--data-dir", g.DataDir, "--topic", "Physics", "--json", "query", "optics", "-n", "2"})
		require.NoError(t, err)

		res := decodeResult(t, &out)
		assert.Equal(t, "Physics", res.Topic)
		require.NotEmpty(t, res.Matches)
		assert.Equal(t, "Optics", res.Matches[0].ID)
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		err := NewCLI().Execute([]string{"frobnicate"})
		assert.Error(t, err)
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Run("StatusWithNoSnapshot", func(t *testing.T) {
		g, _ := testGlobals(t)

		err := (&StatusCmd{}).Run(g)
		assert.Error(t, err)
	})

	t.Run("StatusWithSnapshot", func(t *testing.T) {
		g, out := testGlobals(t)
		require.NoError(t, (&ShowCmd{}).Run(g))
		out.Reset()

		require.NoError(t, (&StatusCmd{}).Run(g))
		assert.Contains(t, out.String(), "Topic:          Physics")
		assert.Contains(t, out.String(), "Concepts:       4")
		assert.Contains(t, out.String(), "Unscored edges: 3")
	})
}

func TestCleanCmd_Run(t *testing.T) {
	t.Run("CleanWithNothing", func(t *testing.T) {
		g, _ := testGlobals(t)

		err := (&CleanCmd{Force: true}).Run(g)
		assert.Error(t, err)
	})

	t.Run("CleanAborted", func(t *testing.T) {
		g, out := testGlobals(t)
		require.NoError(t, (&ShowCmd{}).Run(g))
		out.Reset()
		g.stdin = strings.NewReader("n\n")

		require.NoError(t, (&CleanCmd{}).Run(g))
		assert.Contains(t, out.String(), "Aborted")
		assert.FileExists(t, filepath.Join(g.DataDir, "concept_graph_data.json"))
	})

	t.Run("CleanWithSnapshot", func(t *testing.T) {
		g, _ := testGlobals(t)
		require.NoError(t, (&ShowCmd{}).Run(g))

		require.NoError(t, (&CleanCmd{Force: true}).Run(g))
		assert.NoFileExists(t, filepath.Join(g.DataDir, "concept_graph_data.json"))
		assert.NoDirExists(t, filepath.Join(g.DataDir, "embeddings"))
	})
}

func TestServeCmd_Run(t *testing.T) {
	g, out := testGlobals(t)
	g.stdin = strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"concept_graph","arguments":{}}}`,
	}, "\n") + "\n")

	require.NoError(t, (&ServeCmd{Watch: true}).Run(g))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "conceptmap")
	assert.Contains(t, lines[1], "Kinematics")
	assert.FileExists(t, filepath.Join(g.DataDir, "concept_graph_data.json"))
}

func TestPrintTree(t *testing.T) {
	t.Parallel()

	doc := &graph.Document{
		Core: "Root",
		Concepts: []graph.Concept{
			{ID: "Root", Level: 0},
			{ID: "A", Level: 1, Parent: "Root"},
			{ID: "B", Level: 2, Parent: "A"},
		},
		Relationships: graph.Relationships{graph.Edge("Root", "A"): 81.3},
	}

	var buf bytes.Buffer
	printTree(&buf, doc, true)
	assert.Contains(t, buf.String(), "  - A (81.3)\n")
	assert.Contains(t, buf.String(), "    - B\n")

	buf.Reset()
	printTree(&buf, &graph.Document{Core: "Empty"}, false)
	assert.Equal(t, "Empty (empty)\n", buf.String())
}
