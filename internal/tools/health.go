package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/confluence-mcp/internal/health"
)

// HealthTool handles the health_check MCP tool.
type HealthTool struct {
	checker *health.Checker
}

// NewHealthTool creates a HealthTool.
func NewHealthTool(checker *health.Checker) *HealthTool {
	return &HealthTool{checker: checker}
}

// Definition returns the MCP tool definition for health_check.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("health_check",
		mcp.WithDescription(
			"Check the health of the MCP server and its Confluence connection. Returns a JSON report.",
		),
	)
}

// Handle processes the health_check tool call.
func (t *HealthTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(t.checker.Check(ctx).JSON()), nil
}
