// Package tools implements the MCP tool handlers for Confluence.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() serving the call. Handlers
// return plain Go errors; the middleware pipeline turns them into tool
// error results.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
