// Package prompts implements MCP prompt handlers for Confluence.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a specific sequence of tool calls.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// SummarizePrompt handles the summarize-page MCP prompt.
type SummarizePrompt struct{}

// NewSummarizePrompt creates a SummarizePrompt.
func NewSummarizePrompt() *SummarizePrompt {
	return &SummarizePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *SummarizePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("summarize-page",
		mcp.WithPromptDescription("Read a Confluence page and summarize it."),
		mcp.WithArgument("page_id",
			mcp.ArgumentDescription("ID of the page to summarize"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the summarize-page prompt request.
func (p *SummarizePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := req.Params.Arguments["page_id"]
	if id == "" {
		return nil, fmt.Errorf("page_id is required")
	}

	return &mcp.GetPromptResult{
		Description: "Summarize Confluence page " + id,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `get_page_content` with page_id `" + id + "`.\n\n" +
						"Then:\n" +
						"1. Give me a one-paragraph summary of the page\n" +
						"2. List the key points as bullets\n" +
						"3. Call out any action items, owners or dates it mentions",
				),
			},
		},
	}, nil
}
