// Package wiki talks to the content source behind the tools: a Confluence
// Cloud REST API, a local SQLite page store, or either of them behind a
// page cache.
package wiki

import (
	"context"
	"strings"
)

// Result is one hit from a search or space listing.
type Result struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Page is a page with its raw storage-format body.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space string `json:"space,omitempty"`
	// Body is the storage-format markup as returned by the source.
	Body string `json:"body"`
	Link string `json:"link,omitempty"`
}

// Client is the capability the operation layer depends on. Implementations
// return *apierr.Error for failures they can classify and plain errors for
// everything else.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	GetPage(ctx context.Context, id string) (*Page, error)
	ListBySpace(ctx context.Context, space string, limit int) ([]Result, error)
	// Ping performs the cheapest authenticated round trip available.
	Ping(ctx context.Context) error
	BaseURL() string
}

// TextCQL builds the CQL expression for a full-text search.
func TextCQL(query string) string {
	q := strings.ReplaceAll(query, `\`, `\\`)
	q = strings.ReplaceAll(q, `"`, `\"`)
	return `text ~ "` + q + `"`
}

// SpaceCQL builds the CQL expression listing the pages of a space.
func SpaceCQL(space string) string {
	return "space=" + space + " AND type=page"
}

// pageLink joins the site base and a page's web UI path.
func pageLink(base, webui string) string {
	if webui == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/wiki" + webui
}
