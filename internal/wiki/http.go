package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
)

const (
	defaultTimeout = 30 * time.Second

	// errorBodyLimit caps how much of a failed response body ends up in
	// error messages.
	errorBodyLimit = 512
)

// HTTPClient reads from a Confluence Cloud site through its REST API.
type HTTPClient struct {
	base     string
	username string
	token    string
	http     *http.Client
	agent    string
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTPClient) { h.agent = ua }
}

// NewHTTPClient returns a client for the site at baseURL, for example
// "https://example.atlassian.net". A trailing "/wiki" is accepted.
func NewHTTPClient(baseURL, username, token string, opts ...HTTPOption) *HTTPClient {
	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, "/wiki")
	c := &HTTPClient{
		base:     base,
		username: username,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
		agent:    "confluence-mcp",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the site root used to build page links.
func (c *HTTPClient) BaseURL() string { return c.base }

type searchResponse struct {
	Results []struct {
		Content struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Links struct {
				WebUI string `json:"webui"`
			} `json:"_links"`
		} `json:"content"`
	} `json:"results"`
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// Search runs a full-text CQL query.
func (c *HTTPClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return c.cql(ctx, TextCQL(query), limit)
}

// ListBySpace lists the pages of a space.
func (c *HTTPClient) ListBySpace(ctx context.Context, space string, limit int) ([]Result, error) {
	return c.cql(ctx, SpaceCQL(space), limit)
}

func (c *HTTPClient) cql(ctx context.Context, cql string, limit int) ([]Result, error) {
	params := url.Values{}
	params.Set("cql", cql)
	params.Set("limit", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.get(ctx, "/wiki/rest/api/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Result{
			ID:    r.Content.ID,
			Title: r.Content.Title,
			Link:  pageLink(c.base, r.Content.Links.WebUI),
		})
	}
	return results, nil
}

// GetPage fetches a page with its storage-format body.
func (c *HTTPClient) GetPage(ctx context.Context, id string) (*Page, error) {
	params := url.Values{}
	params.Set("expand", "body.storage,space")

	var resp contentResponse
	err := c.get(ctx, "/wiki/rest/api/content/"+url.PathEscape(id), params, &resp)
	if err != nil {
		if apierr.Classify(err).Kind == apierr.KindNotFound {
			return nil, apierr.NotFound("Page", id)
		}
		return nil, err
	}

	return &Page{
		ID:    resp.ID,
		Title: resp.Title,
		Space: resp.Space.Key,
		Body:  resp.Body.Storage.Value,
		Link:  pageLink(c.base, resp.Links.WebUI),
	}, nil
}

// Ping asks for a single space, which needs valid credentials but no
// particular content.
func (c *HTTPClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("limit", "1")
	return c.get(ctx, "/wiki/rest/api/space", params, nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("wiki: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)
	if c.username != "" || c.token != "" {
		req.SetBasicAuth(c.username, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierr.Network(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return apierr.FromStatus(resp.StatusCode, strings.TrimSpace(string(body)),
			parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("wiki: decode %s: %w", path, err)
	}
	return nil
}

// parseRetryAfter reads a Retry-After header given either as seconds or as
// an HTTP date. Zero means absent or unparseable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
