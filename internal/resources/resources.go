// Package resources implements MCP resource handlers for Confluence.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (confluence://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/health"
	"github.com/HendryAvila/confluence-mcp/internal/ops"
)

const (
	pagePrefix = "confluence://page/"
	healthURI  = "confluence://health"
)

// Handler serves the Confluence resources.
type Handler struct {
	svc     *ops.Service
	checker *health.Checker
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(svc *ops.Service, checker *health.Checker) *Handler {
	return &Handler{svc: svc, checker: checker}
}

// PageTemplate returns the resource template for a single page.
func (h *Handler) PageTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		pagePrefix+"{id}",
		"Confluence Page",
		mcp.WithTemplateDescription("A Confluence page rendered as Markdown"),
		mcp.WithTemplateMIMEType("text/markdown"),
	)
}

// HandlePage returns the page named by the URI as Markdown.
func (h *Handler) HandlePage(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := strings.TrimPrefix(uri, pagePrefix)
	if id == uri {
		return nil, fmt.Errorf("unexpected page uri %q", uri)
	}

	out, err := h.svc.GetPage(ctx, id, true)
	if err != nil {
		return errorResource(uri, apierr.UserMessage(err)), nil
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     out,
		},
	}, nil
}

// HealthResource returns the MCP resource definition for the health report.
func (h *Handler) HealthResource() mcp.Resource {
	return mcp.NewResource(
		healthURI,
		"Server Health",
		mcp.WithResourceDescription("Health of the server and its Confluence connection"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleHealth returns the current health report as JSON.
func (h *Handler) HandleHealth(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     h.checker.Check(ctx).JSON(),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     message,
		},
	}
}
