// Package transport runs the MCP server over stdio or over HTTP with
// server-sent events.
package transport

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// ServeStdio serves s over in/out until ctx is cancelled or in is closed.
// Protocol errors go to logger; stdout carries only protocol frames.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	logger.Info("stdio transport ready")
	return stdio.Listen(ctx, in, out)
}
