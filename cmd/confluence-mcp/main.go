// confluence-mcp: a Confluence wiki MCP server.
//
// Usage:
//
//	confluence-mcp serve     # Start the MCP server (stdio or SSE)
//	confluence-mcp convert   # Convert storage HTML to Markdown
//	confluence-mcp update    # Check for a newer release
package main

import "github.com/HendryAvila/confluence-mcp/internal/cli"

func main() {
	cli.Execute()
}
