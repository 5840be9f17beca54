package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/confluence-mcp/internal/config"
	"github.com/HendryAvila/confluence-mcp/internal/logging"
	"github.com/HendryAvila/confluence-mcp/internal/server"
	"github.com/HendryAvila/confluence-mcp/internal/updater"
)

type serveOptions struct {
	transport     string
	host          string
	port          int
	local         bool
	debug         bool
	noUpdateCheck bool
}

func newServeCommand(cfgPath *string) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), !opts.noUpdateCheck)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", "", "transport: stdio or sse")
	f.StringVar(&opts.host, "host", "", "SSE listen host")
	f.IntVar(&opts.port, "port", 0, "SSE listen port")
	f.BoolVar(&opts.local, "local", false, "serve the local page store even with credentials set")
	f.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	f.BoolVar(&opts.noUpdateCheck, "no-update-check", false, "skip the background release check")
	return cmd
}

// apply copies explicitly set flags over the loaded config.
func (o serveOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("transport") {
		cfg.Server.Transport = o.transport
	}
	if f.Changed("host") {
		cfg.Server.Host = o.host
	}
	if f.Changed("port") {
		cfg.Server.Port = o.port
	}
	if f.Changed("local") {
		cfg.Confluence.Local = o.local
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg.Validate()
}

func runServe(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer, checkUpdates bool) error {
	logger, err := logging.Setup(stderr, cfg.Logging.Level, cfg.Logging.Structured)
	if err != nil {
		return err
	}

	s, cleanup, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	if checkUpdates && server.Version != "dev" {
		go notifyUpdate(ctx, stderr)
	}

	logger.Info("starting confluence-mcp",
		"version", server.Version,
		"transport", cfg.Server.Transport,
		"local", cfg.UseLocal(),
	)
	if err := s.Serve(ctx, stdin, stdout); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// notifyUpdate prints a notice on stderr when a newer release exists.
// Failures are ignored.
func notifyUpdate(ctx context.Context, stderr io.Writer) {
	result, err := updater.Check(ctx, server.Version, updater.Policy())
	if err != nil || !result.UpdateAvailable {
		return
	}
	_, _ = fmt.Fprintf(stderr,
		"\n  Update available: v%s -> v%s\n     Release: %s\n\n",
		result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
	)
}
