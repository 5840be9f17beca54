// Package middleware builds the pipeline every tool call runs through.
//
// A Stage wraps a Handler. Stages are applied in the order they are given to
// New, the first one being outermost, so the order is fixed at registration
// time instead of being spread over nested wrappers.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/metrics"
)

// Handler is an MCP tool handler.
type Handler = server.ToolHandlerFunc

// Stage wraps the handler of the named tool.
type Stage func(tool string, next Handler) Handler

// Pipeline is an ordered list of stages.
type Pipeline struct {
	stages []Stage
}

// New returns a pipeline running stages outermost first.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Wrap applies every stage around h.
func (p *Pipeline) Wrap(tool string, h Handler) Handler {
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i](tool, h)
	}
	return h
}

// AccessControl rejects calls to tools allow does not accept.
func AccessControl(allow func(tool string) bool) Stage {
	return func(tool string, next Handler) Handler {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if !allow(tool) {
				return mcp.NewToolResultError("Error: Access denied to tool " + tool + "."), nil
			}
			return next(ctx, req)
		}
	}
}

// ErrorTranslation turns handler errors into tool error results carrying
// the user-facing message, so callers never see a protocol-level failure.
func ErrorTranslation() Stage {
	return func(_ string, next Handler) Handler {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res, err := next(ctx, req)
			if err != nil {
				return mcp.NewToolResultError(apierr.UserMessage(err)), nil
			}
			return res, nil
		}
	}
}

// Logging logs start, completion and failure of each call under a fresh
// call id.
func Logging(logger *slog.Logger) Stage {
	return func(tool string, next Handler) Handler {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			log := logger.With("tool", tool, "call_id", uuid.NewString())
			log.Debug("tool call started", "arguments", req.GetArguments())

			start := time.Now()
			res, err := next(ctx, req)
			ms := durationMS(time.Since(start))

			switch {
			case err != nil:
				log.Error("tool call failed", "duration_ms", ms, "error_type", apierr.Code(err), "error", err)
			case res != nil && res.IsError:
				log.Warn("tool call returned an error result", "duration_ms", ms)
			default:
				log.Info("tool call completed", "duration_ms", ms)
			}
			return res, err
		}
	}
}

// Metrics records invocation count, latency and errors of each call.
func Metrics(m *metrics.Metrics) Stage {
	return func(tool string, next Handler) Handler {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := next(ctx, req)

			errorType := ""
			switch {
			case err != nil:
				errorType = apierr.Code(err)
			case res != nil && res.IsError:
				errorType = "TOOL_ERROR"
			}
			m.ObserveTool(tool, time.Since(start), errorType)
			return res, err
		}
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
