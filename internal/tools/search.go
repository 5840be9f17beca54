package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/confluence-mcp/internal/ops"
)

// SearchTool handles the search_confluence MCP tool.
type SearchTool struct {
	svc *ops.Service
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(svc *ops.Service) *SearchTool {
	return &SearchTool{svc: svc}
}

// Definition returns the MCP tool definition for search_confluence.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_confluence",
		mcp.WithDescription(
			"Search Confluence pages and blogs. Returns matching titles, page IDs and links. "+
				"Use the returned ID with get_page_content to read a page.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query string (max 500 characters)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 5, max: 100)"),
		),
	)
}

// Handle processes the search_confluence tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := intArg(req, "limit", ops.DefaultSearchLimit)

	out, err := t.svc.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}
