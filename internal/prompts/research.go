package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ResearchPrompt handles the research-topic MCP prompt.
// It has the AI search the wiki and read the most relevant pages.
type ResearchPrompt struct{}

// NewResearchPrompt creates a ResearchPrompt.
func NewResearchPrompt() *ResearchPrompt {
	return &ResearchPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ResearchPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("research-topic",
		mcp.WithPromptDescription("Search Confluence for a topic and answer from the pages found."),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What to look up"),
		),
		mcp.WithArgument("space",
			mcp.ArgumentDescription("Optional space key to browse with list_pages"),
		),
	)
}

// Handle processes the research-topic prompt request.
func (p *ResearchPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := "onboarding"
	space := ""
	if args := req.Params.Arguments; args != nil {
		if t, ok := args["topic"]; ok && t != "" {
			topic = t
		}
		space = args["space"]
	}

	text := "Please run `search_confluence` with query `" + topic + "`.\n\n"
	if space != "" {
		text += "If the search finds nothing useful, run `list_pages` for space `" + space + "`.\n\n"
	}
	text += "Then read the two most relevant pages with `get_page_content` " +
		"and answer my question about " + topic + ", citing page titles and links."

	return &mcp.GetPromptResult{
		Description: "Research " + topic + " in Confluence",
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.NewTextContent(text)},
		},
	}, nil
}
