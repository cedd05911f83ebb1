// Package cmd contains the claude-flow CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/claudeflow/internal/build"
)

var rootCmd = &cobra.Command{
	Use:     "claude-flow",
	Short:   "Event bus for Claude agent coordination",
	Long:    "An in-process event bus coordinating Claude agents, swarms, MCP tools, and system components, with an HTTP API for inspection.",
	Version: build.String(),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(NewUpdateCmd())
}
