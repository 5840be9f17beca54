package ops

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/retry"
	"github.com/HendryAvila/confluence-mcp/internal/wiki"
)

func newLocalService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store, err := wiki.OpenLocal(wiki.LocalConfig{DataDir: t.TempDir(), BaseURL: "https://acme.test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Seed(context.Background()))
	return New(store, opts...)
}

// scriptedClient fails with errs in order, then answers from results.
type scriptedClient struct {
	errs    []error
	calls   int
	results []wiki.Result
	page    *wiki.Page
}

func (c *scriptedClient) next() error {
	c.calls++
	if c.calls <= len(c.errs) {
		return c.errs[c.calls-1]
	}
	return nil
}

func (c *scriptedClient) Search(context.Context, string, int) ([]wiki.Result, error) {
	if err := c.next(); err != nil {
		return nil, err
	}
	return c.results, nil
}

func (c *scriptedClient) GetPage(context.Context, string) (*wiki.Page, error) {
	if err := c.next(); err != nil {
		return nil, err
	}
	return c.page, nil
}

func (c *scriptedClient) ListBySpace(context.Context, string, int) ([]wiki.Result, error) {
	if err := c.next(); err != nil {
		return nil, err
	}
	return c.results, nil
}

func (c *scriptedClient) Ping(context.Context) error { return c.next() }
func (c *scriptedClient) BaseURL() string            { return "https://fake.test" }

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
		Jitter:        retry.NoJitter,
	}
}

func TestSearch_EndToEnd(t *testing.T) {
	s := newLocalService(t)

	out, err := s.Search(context.Background(), "onboarding", DefaultSearchLimit)
	require.NoError(t, err)
	assert.Contains(t, out, "Onboarding Guide")
	assert.Contains(t, out, "ID: 101")
	assert.Equal(t, "- Onboarding Guide (ID: 101)\n  Link: https://acme.test/wiki/display/ENG/Onboarding", out)
}

func TestSearch_NoResults(t *testing.T) {
	s := newLocalService(t)

	out, err := s.Search(context.Background(), "kubernetes", DefaultSearchLimit)
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestGetPage_EndToEnd(t *testing.T) {
	s := newLocalService(t)

	out, err := s.GetPage(context.Background(), "101", true)
	require.NoError(t, err)
	assert.Equal(t, "Title: Onboarding Guide\n\nWelcome to the team! This guide will help you get started.", out)
	assert.NotContains(t, out, "<p>")

	raw, err := s.GetPage(context.Background(), "101", false)
	require.NoError(t, err)
	assert.Equal(t, "Title: Onboarding Guide\n\n<p>Welcome to the team! This guide will help you get started.</p>", raw)
}

func TestGetPage_CustomConverter(t *testing.T) {
	client := &scriptedClient{page: &wiki.Page{ID: "1", Title: "T", Body: "<p>Welcome to the team!</p>"}}
	s := New(client, WithConverter(strings.ToUpper))

	out, err := s.GetPage(context.Background(), "1", true)
	require.NoError(t, err)
	assert.Equal(t, "Title: T\n\n<P>WELCOME TO THE TEAM!</P>", out)
}

func TestGetPage_NotFound(t *testing.T) {
	s := newLocalService(t)

	_, err := s.GetPage(context.Background(), "999", true)
	assert.Equal(t, apierr.KindNotFound, apierr.Classify(err).Kind)
	assert.Equal(t, "Error: Page not found: 999", apierr.UserMessage(err))
}

func TestListPages_EndToEnd(t *testing.T) {
	s := newLocalService(t)

	out, err := s.ListPages(context.Background(), "eng", DefaultListLimit)
	require.NoError(t, err)
	assert.Equal(t,
		"- Onboarding Guide (ID: 101)\n  Link: https://acme.test/wiki/display/ENG/Onboarding\n"+
			"- Release Notes v1.0 (ID: 103)\n  Link: https://acme.test/wiki/display/ENG/Release+Notes+v1.0",
		out)

	out, err = s.ListPages(context.Background(), "OPS", DefaultListLimit)
	require.NoError(t, err)
	assert.Equal(t, "No pages found in space OPS.", out)
}

func TestValidationHappensBeforeRemoteCall(t *testing.T) {
	client := &scriptedClient{}
	s := New(client, WithPolicy(fastPolicy(3)))
	ctx := context.Background()

	_, err := s.Search(ctx, "  ", 5)
	assert.Error(t, err)
	_, err = s.Search(ctx, "ok", 0)
	assert.Error(t, err)
	_, err = s.GetPage(ctx, "bad id", true)
	assert.Error(t, err)
	_, err = s.ListPages(ctx, "BAD KEY", 5)
	assert.Error(t, err)
	_, err = s.ListPages(ctx, "ENG", 1000)
	assert.Error(t, err)

	assert.Zero(t, client.calls)
}

func TestSearch_RetriesTransientFailures(t *testing.T) {
	client := &scriptedClient{
		errs:    []error{apierr.FromStatus(503, "", 0), errors.New("connection reset by peer")},
		results: []wiki.Result{{ID: "7", Title: "Seven", Link: "https://fake.test/wiki/7"}},
	}

	var observed []string
	s := New(client,
		WithPolicy(fastPolicy(3)),
		WithRetryObserver(func(op string, err error, attempt int) {
			observed = append(observed, op)
		}),
	)

	out, err := s.Search(context.Background(), "seven", 5)
	require.NoError(t, err)
	assert.Contains(t, out, "Seven (ID: 7)")
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []string{OpSearch, OpSearch}, observed)
}

func TestListPages_ExhaustionSurfacesMaxRetries(t *testing.T) {
	e := apierr.FromStatus(502, "", 0)
	client := &scriptedClient{errs: []error{e, e, e}}
	s := New(client, WithPolicy(fastPolicy(2)))

	_, err := s.ListPages(context.Background(), "ENG", 5)
	var mre *apierr.MaxRetriesExceededError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, OpListPages, mre.Operation)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, "MAX_RETRIES_EXCEEDED", apierr.Code(err))
}

func TestGetPage_AuthFailureNotRetried(t *testing.T) {
	auth := apierr.Authentication("")
	client := &scriptedClient{errs: []error{auth}}
	s := New(client, WithPolicy(fastPolicy(3)))

	_, err := s.GetPage(context.Background(), "1", true)
	assert.Same(t, auth, err)
	assert.Equal(t, 1, client.calls)
}

func TestFormatResults(t *testing.T) {
	out := FormatResults([]wiki.Result{
		{ID: "1", Title: "A", Link: "u1"},
		{ID: "2", Title: "B", Link: "u2"},
	})
	assert.Equal(t, "- A (ID: 1)\n  Link: u1\n- B (ID: 2)\n  Link: u2", out)
}
