package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.anthropic.com/v1/messages", cfg.LLM.URL)
	assert.Equal(t, "2023-06-01", cfg.LLM.Version)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 8, cfg.Embeddings.BatchSize)
	assert.Equal(t, 768, cfg.Embeddings.Dimension)
	assert.Equal(t, 3, cfg.Generation.Depth)
	assert.Equal(t, 5, cfg.Generation.Breadth)
	assert.Equal(t, filepath.Join("data", "concept_graph_data.json"), cfg.SnapshotPath())
	assert.Equal(t, filepath.Join("data", "embeddings"), cfg.CacheDir())
}

func TestDecode(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := Decode(strings.NewReader(`
data_dir: /tmp/maps
llm:
  model: claude-3-haiku-20240307
  timeout: 5s
embeddings:
  provider: http
  batch_size: 4
`), cfg)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/maps", cfg.DataDir)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "http", cfg.Embeddings.Provider)
	assert.Equal(t, 4, cfg.Embeddings.BatchSize)
	// untouched fields keep their defaults
	assert.Equal(t, "2023-06-01", cfg.LLM.Version)

	t.Run("unknown field", func(t *testing.T) {
		err := Decode(strings.NewReader("bogus: 1\n"), Default())
		assert.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		assert.NoError(t, Decode(strings.NewReader(""), Default()))
	})
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"CLAUDE_API_KEY":              "key-2",
		"CONCEPTMAP_EMBED_PROVIDER":   "http",
		"CONCEPTMAP_EMBED_BATCH_SIZE": "16",
		"CONCEPTMAP_LLM_TIMEOUT":      "3s",
		"CONCEPTMAP_EMBED_DIMENSION":  "not-a-number",
	}
	cfg := Default()
	applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "key-2", cfg.LLM.APIKey)
	assert.Equal(t, "http", cfg.Embeddings.Provider)
	assert.Equal(t, 16, cfg.Embeddings.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 768, cfg.Embeddings.Dimension)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Embeddings.Provider = "onnx"
	cfg.Generation.Depth = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
	assert.Contains(t, err.Error(), "Depth")
}

func TestLoad(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conceptmap.yaml")
		require.NoError(t, os.WriteFile(path, []byte("default_topic: Astronomy\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Astronomy", cfg.DefaultTopic)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
