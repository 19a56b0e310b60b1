package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Benny93/conceptmap-go/internal/storage"
	"github.com/Benny93/conceptmap-go/mcp"
)

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Watch       bool   `short:"w" help:"Reload the graph when the snapshot file changes"`
	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)"`
}

// Run executes the serve command. stdout carries JSON-RPC only; all
// diagnostics go to stderr through the logger.
func (c *ServeCmd) Run(g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case sig := <-osSignalChannel():
			rt.log.Info("shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if c.Watch {
		if err := os.MkdirAll(filepath.Dir(rt.store.Path()), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		go func() {
			err := storage.WatchSnapshot(ctx, rt.store.Path(), storage.DefaultWatchDebounce, rt.log, func() {
				changed, err := rt.session.Reload()
				switch {
				case err != nil:
					rt.log.Warn("reloading snapshot failed", "error", err)
				case changed:
					rt.log.Info("reloaded snapshot", "topic", rt.session.Topic())
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				rt.log.Error("snapshot watch stopped", "error", err)
			}
		}()
		rt.log.Info("snapshot watching enabled", "path", rt.store.Path())
	}

	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.metrics.Handler())
		srv := &http.Server{Addr: c.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		rt.log.Info("serving metrics", "addr", c.MetricsAddr)
	}

	server := mcp.NewServer(rt.session, rt.log)
	rt.log.Info("starting MCP server", "topic", rt.session.Topic())
	return server.Run(ctx, g.in(), g.out())
}

// StatusCmd shows the snapshot and cache state.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.store.Peek()
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			return fmt.Errorf("no snapshot found at %s. Run 'conceptmap show' first", rt.store.Path())
		}
		return err
	}

	if g.JSON {
		return g.printJSON(map[string]any{
			"snapshot":      rt.store.Path(),
			"topic":         doc.Core,
			"concepts":      len(doc.Concepts),
			"relationships": len(doc.Relationships),
			"missing":       len(doc.MissingEdges()),
			"levels":        len(doc.Levels()),
			"cached":        rt.cache.Count(),
		})
	}

	w := g.out()
	fmt.Fprintf(w, "Snapshot status for %s\n", rt.store.Path())
	fmt.Fprintf(w, "  Topic:          %s\n", doc.Core)
	fmt.Fprintf(w, "  Concepts:       %d\n", len(doc.Concepts))
	fmt.Fprintf(w, "  Levels:         %d\n", len(doc.Levels()))
	fmt.Fprintf(w, "  Relationships:  %d\n", len(doc.Relationships))
	fmt.Fprintf(w, "  Unscored edges: %d\n", len(doc.MissingEdges()))
	fmt.Fprintf(w, "  Cached vectors: %d\n", rt.cache.Count())
	if err := doc.Validate(); err != nil {
		color.New(color.FgYellow).Fprintf(w, "  Warning: %v\n", err)
	}
	return nil
}

// CleanCmd deletes the snapshot and the embedding cache.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	var targets []string
	for _, p := range []string{cfg.SnapshotPath(), cfg.CacheDir()} {
		if _, err := os.Stat(p); err == nil {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing to clean in %s", cfg.DataDir)
	}

	if !c.Force {
		fmt.Fprintf(g.out(), "Delete %s? [y/N] ", strings.Join(targets, ", "))
		var response string
		_, _ = fmt.Fscanln(g.in(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(g.out(), "Aborted")
			return nil
		}
	}

	for _, p := range targets {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("deleting %s: %w", p, err)
		}
		g.success("Deleted %s", p)
	}
	return nil
}
