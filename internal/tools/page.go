package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/confluence-mcp/internal/ops"
)

// PageTool handles the get_page_content MCP tool.
type PageTool struct {
	svc *ops.Service
}

// NewPageTool creates a PageTool.
func NewPageTool(svc *ops.Service) *PageTool {
	return &PageTool{svc: svc}
}

// Definition returns the MCP tool definition for get_page_content.
func (t *PageTool) Definition() mcp.Tool {
	return mcp.NewTool("get_page_content",
		mcp.WithDescription(
			"Retrieve the content of a Confluence page. By default the page body is "+
				"converted from storage HTML to Markdown for easier reading.",
		),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The Confluence page ID"),
		),
		mcp.WithBoolean("convert_to_markdown",
			mcp.Description("Convert HTML to Markdown (default: true). Set false for the raw storage format."),
		),
	)
}

// Handle processes the get_page_content tool call.
func (t *PageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("page_id", "")
	markdown := boolArg(req, "convert_to_markdown", true)

	out, err := t.svc.GetPage(ctx, id, markdown)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}
