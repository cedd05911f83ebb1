package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/config"
)

func writeMCPsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMCPRegistryMissingFile(t *testing.T) {
	registry, err := config.LoadMCPRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, registry.Names())
}

func TestLoadMCPRegistryStdio(t *testing.T) {
	path := writeMCPsFile(t, `
filesystem:
  transport: stdio
  command: npx
  args: ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
`)
	registry, err := config.LoadMCPRegistry(path)
	require.NoError(t, err)

	require.True(t, registry.Has("filesystem"))
	cfg, ok := registry.Get("filesystem")
	require.True(t, ok)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, "npx", cfg.Command)
	assert.Len(t, cfg.Args, 3)
}

func TestLoadMCPRegistryStreamableHTTP(t *testing.T) {
	t.Setenv("TEST_MCP_TOKEN", "secret-token")
	path := writeMCPsFile(t, `
remote:
  transport: streamable_http
  url: https://mcp.example.com/v1
  headers:
    Authorization: "Bearer ${ENV:TEST_MCP_TOKEN}"
`)
	registry, err := config.LoadMCPRegistry(path)
	require.NoError(t, err)

	cfg, ok := registry.Get("remote")
	require.True(t, ok)
	assert.Equal(t, "https://mcp.example.com/v1", cfg.URL)
	assert.Equal(t, "Bearer secret-token", cfg.Headers["Authorization"])
}

func TestLoadMCPRegistryErrors(t *testing.T) {
	t.Run("unknown transport", func(t *testing.T) {
		path := writeMCPsFile(t, "bad:\n  transport: websocket\n  url: ws://x\n")
		_, err := config.LoadMCPRegistry(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown transport")
	})

	t.Run("stdio without command", func(t *testing.T) {
		path := writeMCPsFile(t, "bad:\n  transport: stdio\n")
		_, err := config.LoadMCPRegistry(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a command")
	})

	t.Run("missing env var", func(t *testing.T) {
		path := writeMCPsFile(t, `
remote:
  transport: streamable_http
  url: https://mcp.example.com
  headers:
    Authorization: "${ENV:FLOW_TEST_UNSET_VAR}"
`)
		_, err := config.LoadMCPRegistry(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FLOW_TEST_UNSET_VAR")
	})
}

func TestNamesSorted(t *testing.T) {
	path := writeMCPsFile(t, `
zeta:
  transport: stdio
  command: zeta-server
alpha:
  transport: stdio
  command: alpha-server
`)
	registry, err := config.LoadMCPRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, registry.Names())
}
