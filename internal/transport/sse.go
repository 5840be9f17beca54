package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/confluence-mcp/internal/auth"
	"github.com/HendryAvila/confluence-mcp/internal/health"
	"github.com/HendryAvila/confluence-mcp/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// SSEConfig configures the event-stream transport.
type SSEConfig struct {
	Host      string
	Port      int
	APIKey    string
	RateLimit int // requests per minute per client
}

// Addr returns host:port.
func (c SSEConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSE serves the MCP server over HTTP with server-sent events, next to the
// /health and /metrics endpoints.
type SSE struct {
	cfg     SSEConfig
	sse     *server.SSEServer
	handler http.Handler
	logger  *slog.Logger
}

// NewSSE builds the transport. checker and m may not be nil.
func NewSSE(s *server.MCPServer, cfg SSEConfig, checker *health.Checker, m *metrics.Metrics, logger *slog.Logger) *SSE {
	sse := server.NewSSEServer(s, server.WithBaseURL(baseURL(cfg)))

	mux := http.NewServeMux()
	mux.Handle("/sse", m.Middleware("/sse", countConnections(m, sse.SSEHandler())))
	mux.Handle("/message", m.Middleware("/message", sse.MessageHandler()))
	mux.Handle("/health", m.Middleware("/health", healthHandler(checker)))
	mux.Handle("/metrics", m.Handler())

	var h http.Handler = auth.RequireAPIKey(cfg.APIKey, mux)
	h = NewRateLimiter(cfg.RateLimit).Middleware(h)
	h = auth.SecurityHeaders(h)

	return &SSE{cfg: cfg, sse: sse, handler: h, logger: logger}
}

// Handler returns the full HTTP handler chain.
func (t *SSE) Handler() http.Handler { return t.handler }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (t *SSE) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              t.cfg.Addr(),
		Handler:           t.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("sse transport listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("sse transport: %w", err)
	case <-ctx.Done():
	}

	t.logger.Info("sse transport shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.sse.Shutdown(shutdownCtx); err != nil {
		t.logger.Warn("closing sse sessions", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sse transport shutdown: %w", err)
	}
	return nil
}

func baseURL(cfg SSEConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

func countConnections(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ActiveConnections.Inc()
		defer m.ActiveConnections.Dec()
		next.ServeHTTP(w, r)
	})
}

func healthHandler(checker *health.Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == health.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_, _ = w.Write([]byte(report.JSON()))
	})
}
