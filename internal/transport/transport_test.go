package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/confluence-mcp/internal/health"
	"github.com/HendryAvila/confluence-mcp/internal/metrics"
	"github.com/HendryAvila/confluence-mcp/internal/retry"
	"github.com/HendryAvila/confluence-mcp/internal/wiki"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMCP() *server.MCPServer {
	return server.NewMCPServer("confluence-mcp-test", "test", server.WithToolCapabilities(true))
}

func newSSE(t *testing.T, cfg SSEConfig) *SSE {
	t.Helper()
	store, err := wiki.OpenLocal(wiki.LocalConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	p := retry.Policy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}
	return NewSSE(newMCP(), cfg, health.NewChecker(store, p, discard()), metrics.New(), discard())
}

func do(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Allow(t *testing.T) {
	l := NewRateLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per client")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("a"), "one token refills every 30s at 2/min")
	assert.False(t, l.Allow("a"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	l := NewRateLimiter(10)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(idleTTL + time.Minute)
	l.Allow("c")

	assert.Len(t, l.clients, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Rate limit exceeded"}`, rec.Body.String())
}

func TestSSE_HealthIsPublic(t *testing.T) {
	tr := newSSE(t, SSEConfig{Host: "127.0.0.1", Port: 8080, APIKey: "k", RateLimit: 100})

	rec := do(tr.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, health.StatusHealthy, report.Status)
}

func TestSSE_RequiresAPIKey(t *testing.T) {
	tr := newSSE(t, SSEConfig{Host: "127.0.0.1", Port: 8080, APIKey: "k", RateLimit: 100})

	for _, path := range []string{"/sse", "/message", "/metrics"} {
		rec := do(tr.Handler(), http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"), path)
	}

	rec := do(tr.Handler(), http.MethodPost, "/message", "k")
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestSSE_Metrics(t *testing.T) {
	tr := newSSE(t, SSEConfig{Port: 8080, RateLimit: 100})

	do(tr.Handler(), http.MethodGet, "/health", "")
	rec := do(tr.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `confluence_mcp_http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
}

func TestSSE_RateLimited(t *testing.T) {
	tr := newSSE(t, SSEConfig{Port: 8080, RateLimit: 2})

	assert.Equal(t, http.StatusOK, do(tr.Handler(), http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(tr.Handler(), http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(tr.Handler(), http.MethodGet, "/health", "").Code)
}

func TestSSE_RunStopsOnCancel(t *testing.T) {
	tr := newSSE(t, SSEConfig{Host: "127.0.0.1", Port: 0, RateLimit: 100})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSSEConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", SSEConfig{Host: "0.0.0.0", Port: 8080}.Addr())
	assert.Equal(t, "http://localhost:8080", baseURL(SSEConfig{Host: "0.0.0.0", Port: 8080}))
	assert.Equal(t, "http://10.0.0.5:9000", baseURL(SSEConfig{Host: "10.0.0.5", Port: 9000}))
}

func TestServeStdio_Initialize(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ServeStdio(ctx, newMCP(), inR, outW, discard())
	}()

	req := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}` + "\n"
	go func() { _, _ = inW.Write([]byte(req)) }()

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(outR).ReadString('\n')
		lines <- line
	}()

	select {
	case line := <-lines:
		assert.True(t, strings.Contains(line, `"serverInfo"`), line)
		assert.Contains(t, line, "confluence-mcp-test")
	case <-time.After(5 * time.Second):
		t.Fatal("no response from stdio server")
	}

	cancel()
	_ = inW.Close()
	_ = outR.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}
