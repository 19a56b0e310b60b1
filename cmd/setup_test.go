package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCmd_Run(t *testing.T) {
	t.Run("SetupQwenLocal", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Chdir(tmpDir)

		cmd := &SetupCmd{
			Qwen:   true,
			Local:  true,
			Format: "json",
		}

		err := cmd.Run(&Globals{stdout: &bytes.Buffer{}})
		assert.NoError(t, err)

		assert.FileExists(t, filepath.Join(tmpDir, ".qwen", "mcp.json"))
	})

	t.Run("SetupQwenGlobal", func(t *testing.T) {
		tmpHome := t.TempDir()
		t.Setenv("HOME", tmpHome)

		cmd := &SetupCmd{
			Qwen:   true,
			Global: true,
			Format: "json",
		}

		err := cmd.Run(&Globals{stdout: &bytes.Buffer{}})
		assert.NoError(t, err)

		assert.FileExists(t, filepath.Join(tmpHome, ".qwen", "global", "mcp.json"))
	})

	t.Run("SetupClaudeWithTopic", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Chdir(tmpDir)

		cmd := &SetupCmd{
			Claude: true,
			Format: "json",
		}

		var out bytes.Buffer
		err := cmd.Run(&Globals{Topic: "Physics", stdout: &out})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Created local Claude MCP config")

		content, err := os.ReadFile(filepath.Join(tmpDir, ".claude", "mcp.json"))
		require.NoError(t, err)

		var loaded struct {
			MCPServers map[string]struct {
				Command string   `json:"command"`
				Args    []string `json:"args"`
			} `json:"mcpServers"`
		}
		require.NoError(t, json.Unmarshal(content, &loaded))
		server := loaded.MCPServers["conceptmap"]
		assert.Equal(t, "conceptmap", server.Command)
		assert.Equal(t, []string{"serve", "--watch", "--topic", "Physics"}, server.Args)
	})

	t.Run("SetupCursorFilePath", func(t *testing.T) {
		tmpDir := t.TempDir()

		cmd := &SetupCmd{
			Cursor:   true,
			Local:    true,
			Format:   "text",
			FilePath: tmpDir,
		}

		err := cmd.Run(&Globals{stdout: &bytes.Buffer{}})
		assert.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(tmpDir, "mcp.json"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "# MCP Configuration for conceptmap")
		assert.Contains(t, string(content), `mcpServers: {"conceptmap"`)
	})

	t.Run("SetupDefault", func(t *testing.T) {
		cmd := &SetupCmd{
			Format: "json",
		}

		var out bytes.Buffer
		err := cmd.Run(&Globals{stdout: &out})
		require.NoError(t, err)

		var loaded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &loaded))
		assert.Contains(t, loaded, "mcpServers")
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		cmd := &SetupCmd{
			Qwen:   true,
			Format: "invalid",
		}

		err := cmd.Run(&Globals{stdout: &bytes.Buffer{}})
		assert.Error(t, err)
	})
}

func TestMCPConfigGeneration(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		config := generateServerConfig("", "")

		mcpServers := config["mcpServers"].(map[string]any)
		require.Contains(t, mcpServers, "conceptmap")

		server := mcpServers["conceptmap"].(map[string]any)
		assert.Equal(t, "conceptmap", server["command"])
		assert.Equal(t, []string{"serve", "--watch"}, server["args"])
	})

	t.Run("PinsTopicAndDataDir", func(t *testing.T) {
		config := generateServerConfig("Biology", "/srv/maps")

		server := config["mcpServers"].(map[string]any)["conceptmap"].(map[string]any)
		assert.Equal(t, []string{"serve", "--watch", "--topic", "Biology", "--data-dir", "/srv/maps"}, server["args"])
	})
}

func TestConfigPaths(t *testing.T) {
	t.Parallel()

	t.Run("GetLocalConfigPath", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := getLocalConfigPath(tmpDir, "qwen")
		assert.Equal(t, filepath.Join(tmpDir, ".qwen", "mcp.json"), path)
	})

	t.Run("GetClientConfigDir", func(t *testing.T) {
		assert.Equal(t, ".qwen", getClientConfigDir("qwen"))
		assert.Equal(t, ".claude", getClientConfigDir("claude"))
		assert.Equal(t, ".cursor", getClientConfigDir("cursor"))
		assert.Equal(t, ".qwen", getClientConfigDir("unknown"))
	})
}

func TestWriteConfig(t *testing.T) {
	t.Parallel()

	t.Run("WriteJSONConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		err := writeConfig(configPath, generateServerConfig("", ""), "json")
		require.NoError(t, err)

		content, err := os.ReadFile(configPath)
		require.NoError(t, err)

		var loaded map[string]any
		assert.NoError(t, json.Unmarshal(content, &loaded))
	})

	t.Run("WriteConfigCreatesDirectory", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

		err := writeConfig(configPath, map[string]any{"test": "value"}, "json")
		assert.NoError(t, err)
		assert.FileExists(t, configPath)
	})
}
