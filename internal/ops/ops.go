// Package ops is the operation layer behind the tools: it validates input,
// calls the content source through the retry engine and renders results as
// text for the caller.
package ops

import (
	"context"
	"log/slog"
	"strings"

	"github.com/HendryAvila/confluence-mcp/internal/markup"
	"github.com/HendryAvila/confluence-mcp/internal/retry"
	"github.com/HendryAvila/confluence-mcp/internal/wiki"
)

// Operation names used for retry logging and metrics.
const (
	OpSearch    = "search"
	OpGetPage   = "get_page"
	OpListPages = "list_pages"
)

// RetryObserver is told about every retry the service performs.
type RetryObserver func(op string, err error, attempt int)

// Service runs the search, get-page and list-pages operations.
type Service struct {
	client  wiki.Client
	policy  retry.Policy
	convert func(string) string
	observe RetryObserver
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the retry policy for remote calls.
func WithPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithConverter replaces the markup normalizer used for page bodies.
func WithConverter(fn func(string) string) Option {
	return func(s *Service) { s.convert = fn }
}

// WithRetryObserver registers a callback for retries.
func WithRetryObserver(fn RetryObserver) Option {
	return func(s *Service) { s.observe = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a Service reading from client.
func New(client wiki.Client, opts ...Option) *Service {
	s := &Service{
		client:  client,
		policy:  retry.DefaultPolicy(),
		convert: markup.Normalize,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the content source.
func (s *Service) Client() wiki.Client { return s.client }

func (s *Service) policyFor(op string) retry.Policy {
	p := s.policy
	p.Logger = s.logger
	if s.observe != nil {
		observe := s.observe
		p.OnRetry = func(err error, attempt int) { observe(op, err, attempt) }
	}
	return p
}

// Search finds pages matching query.
func (s *Service) Search(ctx context.Context, query string, limit int) (string, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return "", err
	}
	if limit, err = ValidateLimit(limit); err != nil {
		return "", err
	}

	s.logger.Info("searching confluence", "query", query, "limit", limit)
	results, err := retry.Do(ctx, OpSearch, s.policyFor(OpSearch), func(ctx context.Context) ([]wiki.Result, error) {
		return s.client.Search(ctx, query, limit)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("search completed", "query", query, "results", len(results))

	if len(results) == 0 {
		return "No results found.", nil
	}
	return FormatResults(results), nil
}

// FetchPage validates id and fetches the page through the retry engine.
func (s *Service) FetchPage(ctx context.Context, id string) (*wiki.Page, error) {
	id, err := ValidatePageID(id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("getting page content", "page_id", id)
	page, err := retry.Do(ctx, OpGetPage, s.policyFor(OpGetPage), func(ctx context.Context) (*wiki.Page, error) {
		return s.client.GetPage(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("retrieved page", "page_id", id, "title", page.Title)
	return page, nil
}

// GetPage returns the page as "Title: <title>", a blank line, then the body,
// normalized to Markdown unless markdown is false.
func (s *Service) GetPage(ctx context.Context, id string, markdown bool) (string, error) {
	page, err := s.FetchPage(ctx, id)
	if err != nil {
		return "", err
	}
	content := page.Body
	if markdown {
		content = s.convert(page.Body)
	}
	return "Title: " + page.Title + "\n\n" + content, nil
}

// ListPages lists the pages of a space.
func (s *Service) ListPages(ctx context.Context, space string, limit int) (string, error) {
	space, err := ValidateSpaceKey(space)
	if err != nil {
		return "", err
	}
	if limit, err = ValidateLimit(limit); err != nil {
		return "", err
	}

	s.logger.Info("listing pages", "space", space, "limit", limit)
	results, err := retry.Do(ctx, OpListPages, s.policyFor(OpListPages), func(ctx context.Context) ([]wiki.Result, error) {
		return s.client.ListBySpace(ctx, space, limit)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("listed pages", "space", space, "results", len(results))

	if len(results) == 0 {
		return "No pages found in space " + space + ".", nil
	}
	return FormatResults(results), nil
}

// FormatResults renders one "- title (ID: id)" line per result, each
// followed by an indented link line.
func FormatResults(results []wiki.Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "- "+r.Title+" (ID: "+r.ID+")\n  Link: "+r.Link)
	}
	return strings.Join(lines, "\n")
}
