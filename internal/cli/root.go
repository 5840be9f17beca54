// Package cli holds the confluence-mcp command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Commands read and write through
// cobra's In/Out/Err so tests can capture them.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "confluence-mcp",
		Short: "Confluence MCP server",
		Long: `confluence-mcp exposes a Confluence wiki to AI assistants over the
Model Context Protocol: search, page reading, space listing and health checks.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file (optional)")

	root.AddCommand(
		newServeCommand(&cfgPath),
		newConvertCommand(),
		newVersionCommand(),
		newUpdateCommand(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
