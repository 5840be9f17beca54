package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTool(t *testing.T) {
	m := New()

	m.ObserveTool("search_confluence", 20*time.Millisecond, "")
	m.ObserveTool("search_confluence", 30*time.Millisecond, "")
	m.ObserveTool("search_confluence", 10*time.Millisecond, "VALIDATION_ERROR")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("search_confluence", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("search_confluence", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolErrors.WithLabelValues("search_confluence", "VALIDATION_ERROR")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ToolDuration))
}

func TestObserveRetry(t *testing.T) {
	m := New()
	m.ObserveRetry("search")
	m.ObserveRetry("search")
	m.ObserveRetry("get_page")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Retries.WithLabelValues("search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("get_page")))
}

func TestStartTimeIsSet(t *testing.T) {
	m := New()
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(m.StartTime), 5)
}

func TestMiddleware(t *testing.T) {
	m := New()
	h := m.Middleware("/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	denied := m.Middleware("/message", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	denied.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/message", nil))
	denied.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/message", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/message", "401")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveTool("health_check", time.Millisecond, "")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `confluence_mcp_tool_invocations_total{status="success",tool_name="health_check"} 1`)
	assert.Contains(t, string(body), "confluence_mcp_server_start_time_seconds")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveRetry("search")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Retries.WithLabelValues("search")))
}
