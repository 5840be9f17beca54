package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "user@example.com", "secret"), srv
}

func TestHTTPClient_Search(t *testing.T) {
	var gotCQL, gotLimit, gotUser, gotPass string
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wiki/rest/api/search", r.URL.Path)
		gotCQL = r.URL.Query().Get("cql")
		gotLimit = r.URL.Query().Get("limit")
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{
				"content": map[string]any{
					"id":     "101",
					"title":  "Onboarding Guide",
					"_links": map[string]any{"webui": "/display/ENG/Onboarding"},
				},
			}},
		})
	})

	results, err := c.Search(context.Background(), `say "hi"`, 5)
	require.NoError(t, err)

	assert.Equal(t, `text ~ "say \"hi\""`, gotCQL)
	assert.Equal(t, "5", gotLimit)
	assert.Equal(t, "user@example.com", gotUser)
	assert.Equal(t, "secret", gotPass)

	require.Len(t, results, 1)
	assert.Equal(t, Result{
		ID:    "101",
		Title: "Onboarding Guide",
		Link:  srv.URL + "/wiki/display/ENG/Onboarding",
	}, results[0])
}

func TestHTTPClient_ListBySpace(t *testing.T) {
	var gotCQL string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCQL = r.URL.Query().Get("cql")
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	results, err := c.ListBySpace(context.Background(), "ENG", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "space=ENG AND type=page", gotCQL)
}

func TestHTTPClient_GetPage(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wiki/rest/api/content/123", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("expand"), "body.storage")
		_, _ = w.Write([]byte(`{
			"id": "123",
			"title": "Runbook",
			"space": {"key": "OPS"},
			"body": {"storage": {"value": "<p>Restart it.</p>"}},
			"_links": {"webui": "/spaces/OPS/pages/123"}
		}`))
	})

	p, err := c.GetPage(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "Runbook", p.Title)
	assert.Equal(t, "OPS", p.Space)
	assert.Equal(t, "<p>Restart it.</p>", p.Body)
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status     int
		retryAfter string
		kind       apierr.Kind
		wantAfter  time.Duration
	}{
		{http.StatusUnauthorized, "", apierr.KindAuthenticationFailed, 0},
		{http.StatusForbidden, "", apierr.KindPermissionDenied, 0},
		{http.StatusNotFound, "", apierr.KindNotFound, 0},
		{http.StatusTooManyRequests, "7", apierr.KindRateLimited, 7 * time.Second},
		{http.StatusTooManyRequests, "", apierr.KindRateLimited, 0},
		{http.StatusBadRequest, "", apierr.KindClientError, 0},
		{http.StatusServiceUnavailable, "", apierr.KindServerError, 0},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				http.Error(w, "nope", tt.status)
			})

			_, err := c.Search(context.Background(), "x", 1)
			require.Error(t, err)
			cl := apierr.Classify(err)
			assert.Equal(t, tt.kind, cl.Kind)
			assert.Equal(t, tt.status, cl.Status)
			assert.Equal(t, tt.wantAfter, cl.RetryAfter)
		})
	}
}

func TestHTTPClient_GetPageNotFound(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.GetPage(context.Background(), "999")
	require.Error(t, err)
	assert.Equal(t, "Error: Page not found: 999", apierr.UserMessage(err))
}

func TestHTTPClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, "", "")
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, apierr.KindTransientNetwork, apierr.Classify(err).Kind)
	assert.True(t, apierr.IsRetryable(err))
}

func TestHTTPClient_CancelledContext(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPClient_BaseURL(t *testing.T) {
	assert.Equal(t, "https://acme.atlassian.net", NewHTTPClient("https://acme.atlassian.net/wiki/", "", "").BaseURL())
	assert.Equal(t, "https://acme.atlassian.net", NewHTTPClient("https://acme.atlassian.net", "", "").BaseURL())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
}

func TestTextCQL_Escapes(t *testing.T) {
	assert.Equal(t, `text ~ "plain"`, TextCQL("plain"))
	assert.Equal(t, `text ~ "a \"b\" c\\d"`, TextCQL(`a "b" c\d`))
}
