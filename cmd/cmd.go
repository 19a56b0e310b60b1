// Package cmd provides the command-line interface for conceptmap.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/conceptmap-go/internal/config"
	"github.com/Benny93/conceptmap-go/internal/embeddings"
	"github.com/Benny93/conceptmap-go/internal/engine"
	"github.com/Benny93/conceptmap-go/internal/llm"
	"github.com/Benny93/conceptmap-go/internal/logger"
	"github.com/Benny93/conceptmap-go/internal/metrics"
	"github.com/Benny93/conceptmap-go/internal/session"
	"github.com/Benny93/conceptmap-go/internal/storage"
)

// Version is set at build time.
var Version = "dev"

// Globals are the flags shared by every command.
type Globals struct {
	Config  string `help:"Path to a YAML config file" type:"path"`
	Topic   string `short:"t" help:"Topic to operate on (defaults to the configured topic)"`
	DataDir string `help:"Directory holding the snapshot and the embedding cache" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	JSON    bool   `name:"json" help:"Print results as JSON"`

	stdout io.Writer `kong:"-"`
	stdin  io.Reader `kong:"-"`
}

func (g *Globals) out() io.Writer {
	if g.stdout != nil {
		return g.stdout
	}
	return os.Stdout
}

func (g *Globals) in() io.Reader {
	if g.stdin != nil {
		return g.stdin
	}
	return os.Stdin
}

func (g *Globals) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(g.out(), "✓ "+format+"\n", args...)
}

func (g *Globals) printJSON(v any) error {
	enc := json.NewEncoder(g.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig applies command-line overrides on top of the loaded config.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.DataDir != "" {
		cfg.DataDir = g.DataDir
	}
	if g.Topic != "" {
		cfg.DefaultTopic = g.Topic
	}
	return cfg, nil
}

// runtime is the wired object graph behind a command.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Collector
	cache   storage.VectorCache
	store   *storage.SnapshotStore
	session *session.Session
}

func (g *Globals) open() (*runtime, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode, g.Verbose)
	if err != nil {
		return nil, err
	}
	m := metrics.NewCollector()

	store, err := storage.OpenSnapshotStore(cfg.SnapshotPath(), log)
	if err != nil {
		return nil, err
	}

	cache, err := storage.NewVectorCache(cfg.CacheDir(), cfg.Cache.InMemory)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	gen := llm.New(llm.Options{
		URL:             cfg.LLM.URL,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		Version:         cfg.LLM.Version,
		Timeout:         cfg.LLM.Timeout,
		BreakerFailures: cfg.LLM.BreakerFailures,
		BreakerCooldown: cfg.LLM.BreakerCooldown,
	}, log, m)

	embed := embeddings.NewService(embeddingBackend(cfg.Embeddings), embeddings.Options{
		BatchSize: cfg.Embeddings.BatchSize,
		Dimension: cfg.Embeddings.Dimension,
		Cache:     cache,
	}, log, m)

	eng := engine.New(store, gen, embed, engine.Options{
		Depth:   cfg.Generation.Depth,
		Breadth: cfg.Generation.Breadth,
	}, log, m)

	return &runtime{
		cfg:     cfg,
		log:     log,
		metrics: m,
		cache:   cache,
		store:   store,
		session: session.New(eng, store, cfg.DefaultTopic, log),
	}, nil
}

func embeddingBackend(cfg config.EmbeddingsConfig) embeddings.Backend {
	if cfg.Provider == "http" {
		return embeddings.NewHTTPBackend(embeddings.HTTPOptions{
			URL:              cfg.URL,
			APIKey:           cfg.APIKey,
			Model:            cfg.Model,
			Timeout:          cfg.Timeout,
			QueryInstruction: cfg.QueryInstruction,
		})
	}
	return embeddings.NewLocalBackend(cfg.Dimension)
}

func (r *runtime) Close() {
	if err := r.cache.Close(); err != nil {
		r.log.Warn("closing embedding cache failed", "error", err)
	}
	r.log.Sync()
}

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Show         ShowCmd         `cmd:"" help:"Load or generate the concept graph for a topic"`
	Add          AddCmd          `cmd:"" help:"Add a concept, placed by the model unless a parent is given"`
	AutoAdd      AutoAddCmd      `cmd:"" name:"auto-add" help:"Let the model place a new term"`
	Delete       DeleteCmd       `cmd:"" help:"Delete a concept and its descendants"`
	Rename       RenameCmd       `cmd:"" help:"Rename a concept"`
	Insert       InsertCmd       `cmd:"" help:"Insert a concept between a parent and its child"`
	Expand       ExpandCmd       `cmd:"" help:"Generate children for a concept"`
	Similarities SimilaritiesCmd `cmd:"" help:"Compute missing parent-child similarities"`
	Query        QueryCmd        `cmd:"" help:"Search concepts by name"`
	Serve        ServeCmd        `cmd:"" help:"Start the MCP server (stdio transport)"`
	Status       StatusCmd       `cmd:"" help:"Show snapshot and cache status"`
	Clean        CleanCmd        `cmd:"" help:"Delete the snapshot and the embedding cache"`
	Setup        SetupCmd        `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

func (c *CLI) parser() (*kong.Kong, error) {
	return kong.New(c,
		kong.Name("conceptmap"),
		kong.Description("LLM-assisted concept hierarchies with embedding similarity"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := c.parser()
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run(&c.Globals)
}
