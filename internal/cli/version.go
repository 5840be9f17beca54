package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/confluence-mcp/internal/server"
	"github.com/HendryAvila/confluence-mcp/internal/updater"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "confluence-mcp v%s\n", server.Version)
		},
	}
}

func newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Check GitHub for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.ErrOrStderr()
			_, _ = fmt.Fprintln(w, "Checking for updates...")

			result, err := updater.Check(cmd.Context(), server.Version, updater.Policy())
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			if !result.UpdateAvailable {
				_, _ = fmt.Fprintf(w, "Already at the latest version (v%s)\n", result.CurrentVersion)
				return nil
			}
			_, _ = fmt.Fprintf(w, "New version available: v%s -> v%s\nDownload: %s\n",
				result.CurrentVersion, result.LatestVersion, result.ReleaseURL)
			return nil
		},
	}
}
