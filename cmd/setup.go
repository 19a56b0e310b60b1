package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Custom directory for the configuration file"`
}

// mcpClient describes where a client keeps its MCP configuration.
type mcpClient struct {
	name  string
	label string
	dir   string
	// file is the name used when FilePath overrides the directory.
	file string
}

var mcpClients = map[string]mcpClient{
	"qwen":   {name: "qwen", label: "Qwen", dir: ".qwen", file: "mcp.json"},
	"claude": {name: "claude", label: "Claude", dir: ".claude", file: "settings.json"},
	"cursor": {name: "cursor", label: "Cursor", dir: ".cursor", file: "mcp.json"},
}

// Run executes the setup command.
func (c *SetupCmd) Run(g *Globals) error {
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Format)
	}

	config := generateServerConfig(g.Topic, g.DataDir)

	// No client selected: print the config.
	if !c.Qwen && !c.Claude && !c.Cursor {
		content, err := renderConfig(config, c.Format)
		if err != nil {
			return err
		}
		if c.Format == "text" {
			fmt.Fprintln(g.out(), "# Add this to your MCP client configuration:")
		}
		_, err = g.out().Write(content)
		return err
	}

	if !c.Local && !c.Global {
		c.Local = true
	}

	for _, selected := range []struct {
		on     bool
		client string
	}{{c.Qwen, "qwen"}, {c.Claude, "claude"}, {c.Cursor, "cursor"}} {
		if !selected.on {
			continue
		}
		if err := c.setupClient(g, mcpClients[selected.client], config); err != nil {
			return err
		}
	}
	return nil
}

func (c *SetupCmd) setupClient(g *Globals, client mcpClient, config map[string]any) error {
	if c.Global {
		globalPath := getGlobalConfigPath(client.name)
		if err := writeConfig(globalPath, config, c.Format); err != nil {
			return err
		}
		g.success("Created global %s MCP config at %s", client.label, globalPath)
	}

	if c.Local {
		localPath := getLocalConfigPath(".", client.name)
		if c.FilePath != "" {
			localPath = filepath.Join(c.FilePath, client.file)
		}
		if err := writeConfig(localPath, config, c.Format); err != nil {
			return err
		}
		g.success("Created local %s MCP config at %s", client.label, localPath)
	}
	return nil
}

// generateServerConfig returns the mcpServers entry that launches
// "conceptmap serve --watch", pinned to topic and dataDir when set.
func generateServerConfig(topic, dataDir string) map[string]any {
	args := []string{"serve", "--watch"}
	if topic != "" {
		args = append(args, "--topic", topic)
	}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"conceptmap": map[string]any{
				"command": "conceptmap",
				"args":    args,
			},
		},
	}
}

// Path helpers

func getLocalConfigPath(basePath, client string) string {
	return filepath.Join(basePath, getClientConfigDir(client), "mcp.json")
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return filepath.Join(homeDir, getClientConfigDir(client), "global", "mcp.json")
}

func getClientConfigDir(client string) string {
	if c, ok := mcpClients[client]; ok {
		return c.dir
	}
	return ".qwen"
}

// Config writers

func renderConfig(config map[string]any, format string) ([]byte, error) {
	if format == "json" {
		content, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(content, '\n'), nil
	}

	keys := make([]string, 0, len(config))
	for key := range config {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("# MCP Configuration for conceptmap\n")
	sb.WriteString("# Generated by conceptmap setup\n\n")
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", key, toJSON(config[key]))
	}
	return []byte(sb.String()), nil
}

func writeConfig(configPath string, config map[string]any, format string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	content, err := renderConfig(config, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
