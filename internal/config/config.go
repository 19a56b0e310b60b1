// Package config loads conceptmap settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "CONCEPTMAP_CONFIG"

// Config is the full application configuration.
type Config struct {
	// DataDir holds the snapshot file and the embedding cache.
	DataDir string `yaml:"data_dir" validate:"required"`

	// SnapshotFile is the snapshot file name inside DataDir.
	SnapshotFile string `yaml:"snapshot_file" validate:"required"`

	// DefaultTopic is used when no topic is given on the command line.
	DefaultTopic string `yaml:"default_topic" validate:"required"`

	// LogMode is "dev" or "prod".
	LogMode string `yaml:"log_mode" validate:"oneof=dev prod"`

	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
}

// LLMConfig configures the text-generation gateway.
type LLMConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model" validate:"required"`
	Version string        `yaml:"version" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit; BreakerCooldown is how long it stays open.
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" validate:"gt=0"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	// Provider is "tfidf" (local) or "http" (OpenAI-compatible endpoint).
	Provider         string        `yaml:"provider" validate:"oneof=tfidf http"`
	URL              string        `yaml:"url" validate:"required_if=Provider http"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	QueryInstruction string        `yaml:"query_instruction"`
	Dimension        int           `yaml:"dimension" validate:"gte=8"`
	BatchSize        int           `yaml:"batch_size" validate:"gte=1"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
}

// GenerationConfig shapes the initial hierarchy prompt.
type GenerationConfig struct {
	Depth   int `yaml:"depth" validate:"gte=1,lte=6"`
	Breadth int `yaml:"breadth" validate:"gte=1,lte=12"`
}

// CacheConfig configures the embedding vector cache.
type CacheConfig struct {
	// Dir is the badger directory. Empty means DataDir/embeddings.
	Dir string `yaml:"dir"`

	// InMemory disables the on-disk cache.
	InMemory bool `yaml:"in_memory"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:      "data",
		SnapshotFile: "concept_graph_data.json",
		DefaultTopic: "Machine Learning",
		LogMode:      "dev",
		LLM: LLMConfig{
			URL:             "https://api.anthropic.com/v1/messages",
			Model:           "claude-3-opus-20240229",
			Version:         "2023-06-01",
			Timeout:         10 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:         "tfidf",
			URL:              "https://api.openai.com/v1/embeddings",
			Model:            "text-embedding-3-small",
			QueryInstruction: "Represent this sentence for searching relevant passages: ",
			Dimension:        768,
			BatchSize:        8,
			Timeout:          30 * time.Second,
		},
		Generation: GenerationConfig{Depth: 3, Breadth: 5},
	}
}

// Load builds the configuration. path may be empty, in which case the
// CONCEPTMAP_CONFIG variable is consulted; a missing file is an error only
// when a path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := Decode(f, cfg); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("opening config %s: %w", path, err)
		}
	}

	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding yaml: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	num := func(dst *int, name string) {
		if v, ok := lookup(name); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	dur := func(dst *time.Duration, name string) {
		if v, ok := lookup(name); ok {
			if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
				*dst = d
			}
		}
	}

	str(&cfg.DataDir, "CONCEPTMAP_DATA_DIR")
	str(&cfg.DefaultTopic, "CONCEPTMAP_TOPIC")
	str(&cfg.LogMode, "CONCEPTMAP_LOG_MODE")

	str(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	str(&cfg.LLM.URL, "CONCEPTMAP_LLM_URL")
	str(&cfg.LLM.Model, "CONCEPTMAP_LLM_MODEL")
	dur(&cfg.LLM.Timeout, "CONCEPTMAP_LLM_TIMEOUT")

	str(&cfg.Embeddings.Provider, "CONCEPTMAP_EMBED_PROVIDER")
	str(&cfg.Embeddings.URL, "CONCEPTMAP_EMBED_URL")
	str(&cfg.Embeddings.APIKey, "CONCEPTMAP_EMBED_API_KEY", "OPENAI_API_KEY")
	str(&cfg.Embeddings.Model, "CONCEPTMAP_EMBED_MODEL")
	num(&cfg.Embeddings.Dimension, "CONCEPTMAP_EMBED_DIMENSION")
	num(&cfg.Embeddings.BatchSize, "CONCEPTMAP_EMBED_BATCH_SIZE")
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SnapshotPath returns the full path of the snapshot file.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, c.SnapshotFile)
}

// CacheDir returns the badger directory for the embedding cache.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(c.DataDir, "embeddings")
}
