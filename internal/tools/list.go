package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/confluence-mcp/internal/ops"
)

// ListPagesTool handles the list_pages MCP tool.
type ListPagesTool struct {
	svc *ops.Service
}

// NewListPagesTool creates a ListPagesTool.
func NewListPagesTool(svc *ops.Service) *ListPagesTool {
	return &ListPagesTool{svc: svc}
}

// Definition returns the MCP tool definition for list_pages.
func (t *ListPagesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_pages",
		mcp.WithDescription("List the pages in a Confluence space with their IDs and links."),
		mcp.WithString("space",
			mcp.Description("The Confluence space key (default: ENG)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 100)"),
		),
	)
}

// Handle processes the list_pages tool call.
func (t *ListPagesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	space := req.GetString("space", ops.DefaultSpace)
	limit := intArg(req, "limit", ops.DefaultListLimit)

	out, err := t.svc.ListPages(ctx, space, limit)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}
