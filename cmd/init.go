package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/claudeflow/internal/config"
)

const sampleFlowYAML = `# Claude-Flow settings.
notifications:
  enabled: false
  # event_types defaults to the error-class events when omitted:
  #   agent.error, mcp.error, claude.error
  smtp:
    host: smtp.example.com
    port: 587
    username: ""
    password: ""
    from_address: claude-flow@example.com
    to_addresses: you@example.com
    encryption: starttls
`

const sampleMCPsYAML = `# MCP server registry. Each entry is connected on startup.
#
# github:
#   transport: stdio
#   command: github-mcp-server
#   args: ["stdio"]
#   env:
#     GITHUB_TOKEN: ${ENV:GITHUB_TOKEN}
#
# search:
#   transport: streamable_http
#   url: https://mcp.example.com/mcp
#   headers:
#     Authorization: ${ENV:SEARCH_MCP_TOKEN}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory and sample configuration files",
	RunE:  runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("creating data directory %q: %w", cfg.DataDir, err)
	}
	fmt.Printf("data directory: %s\n", cfg.DataDir)

	for _, f := range []struct {
		path    string
		content string
	}{
		{cfg.FlowFile(), sampleFlowYAML},
		{cfg.MCPsFile(), sampleMCPsYAML},
	} {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Printf("exists:  %s\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0600); err != nil {
			return fmt.Errorf("writing %q: %w", f.path, err)
		}
		fmt.Printf("created: %s\n", f.path)
	}
	return nil
}
