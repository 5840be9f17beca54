// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/confluence-mcp/internal/auth"
	"github.com/HendryAvila/confluence-mcp/internal/cache"
	"github.com/HendryAvila/confluence-mcp/internal/config"
	"github.com/HendryAvila/confluence-mcp/internal/health"
	"github.com/HendryAvila/confluence-mcp/internal/metrics"
	"github.com/HendryAvila/confluence-mcp/internal/middleware"
	"github.com/HendryAvila/confluence-mcp/internal/ops"
	"github.com/HendryAvila/confluence-mcp/internal/prompts"
	"github.com/HendryAvila/confluence-mcp/internal/resources"
	"github.com/HendryAvila/confluence-mcp/internal/tools"
	"github.com/HendryAvila/confluence-mcp/internal/transport"
	"github.com/HendryAvila/confluence-mcp/internal/wiki"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server is the assembled MCP server and the components the transports
// need next to it.
type Server struct {
	MCP     *mcpserver.MCPServer
	Client  wiki.Client
	Ops     *ops.Service
	Health  *health.Checker
	Metrics *metrics.Metrics

	cfg    *config.Config
	logger *slog.Logger
}

// tool is what every handler in internal/tools provides.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates and configures the MCP server with all tools, prompts and
// resources registered.
//
// The returned cleanup function closes the content source and cache and
// must be called on shutdown. It is always non-nil and safe to call even
// if New failed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("cleanup", "error", err)
			}
		}
	}

	role, err := auth.ParseRole(cfg.Server.Role)
	if err != nil {
		return nil, noop, err
	}

	// --- Content source ---

	client, err := newClient(ctx, cfg, logger, &closers)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	// --- Page cache ---

	if cfg.Cache.TTL > 0 {
		c, err := newCache(ctx, cfg.Cache)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		closers = append(closers, c)
		client = wiki.NewCachedClient(client, c, cfg.Cache.TTL, logger)
	}

	// --- Shared services ---

	m := metrics.New()

	svc := ops.New(client,
		ops.WithPolicy(cfg.Retry.Policy()),
		ops.WithLogger(logger),
		ops.WithRetryObserver(func(op string, _ error, _ int) { m.ObserveRetry(op) }),
	)

	pingPolicy := health.PingPolicy()
	pingPolicy.OnRetry = func(error, int) { m.ObserveRetry(health.OpPing) }
	checker := health.NewChecker(client, pingPolicy, logger)

	// --- Create the MCP server ---

	s := mcpserver.NewMCPServer(
		"confluence-mcp",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions()),
	)

	// --- Register tools behind the call pipeline ---
	//
	// Error translation sits inside access control and outside logging
	// and metrics, so those two still see the classified error.

	pipeline := middleware.New(
		middleware.AccessControl(role.Allows),
		middleware.ErrorTranslation(),
		middleware.Logging(logger),
		middleware.Metrics(m),
	)
	for _, t := range []tool{
		tools.NewSearchTool(svc),
		tools.NewPageTool(svc),
		tools.NewListPagesTool(svc),
		tools.NewHealthTool(checker),
	} {
		def := t.Definition()
		s.AddTool(def, pipeline.Wrap(def.Name, t.Handle))
	}

	// --- Register prompts ---

	summarize := prompts.NewSummarizePrompt()
	s.AddPrompt(summarize.Definition(), summarize.Handle)

	research := prompts.NewResearchPrompt()
	s.AddPrompt(research.Definition(), research.Handle)

	// --- Register resources ---

	rh := resources.NewHandler(svc, checker)
	s.AddResourceTemplate(rh.PageTemplate(), rh.HandlePage)
	s.AddResource(rh.HealthResource(), rh.HandleHealth)

	return &Server{
		MCP:     s,
		Client:  client,
		Ops:     svc,
		Health:  checker,
		Metrics: m,
		cfg:     cfg,
		logger:  logger,
	}, cleanup, nil
}

// Serve runs the configured transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	switch s.cfg.Server.Transport {
	case "sse":
		sse := transport.NewSSE(s.MCP, transport.SSEConfig{
			Host:      s.cfg.Server.Host,
			Port:      s.cfg.Server.Port,
			APIKey:    s.cfg.Server.APIKey,
			RateLimit: s.cfg.Server.RateLimit,
		}, s.Health, s.Metrics, s.logger)
		return sse.Run(ctx)
	case "stdio", "":
		err := transport.ServeStdio(ctx, s.MCP, stdin, stdout, s.logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown transport %q", s.cfg.Server.Transport)
	}
}

func newClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *[]io.Closer) (wiki.Client, error) {
	cc := cfg.Confluence
	if !cfg.UseLocal() {
		logger.Info("using Confluence", "url", cc.URL, "username", cc.Username)
		return wiki.NewHTTPClient(cc.URL, cc.Username, cc.APIToken,
			wiki.WithUserAgent("confluence-mcp/"+Version),
		), nil
	}

	if !cc.Local {
		logger.Warn("Confluence credentials not configured, serving the local page store")
	}
	base := cc.URL
	if base == "" {
		base = wiki.DefaultLocalBaseURL
	}
	store, err := wiki.OpenLocal(wiki.LocalConfig{DataDir: cc.DataDir, BaseURL: base})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	*closers = append(*closers, store)
	if err := store.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seeding local store: %w", err)
	}
	logger.Info("using local page store", "data_dir", cc.DataDir)
	return store, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(cfg.MaxEntries), nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting page cache: %w", err)
	}
	return r, nil
}

// noop is the cleanup returned when nothing needs closing.
func noop() {}

// serverInstructions returns the system instructions that tell the AI how
// to use the Confluence tools.
func serverInstructions() string {
	return `You have access to a Confluence wiki through this server.

## Tools
- search_confluence: full-text search. Returns "- <title> (ID: <id>)" lines with links.
- get_page_content: read a page by ID. Markdown by default; pass
  convert_to_markdown=false for the raw storage HTML.
- list_pages: list the pages of a space (default space ENG).
- health_check: JSON report on the server and the Confluence connection.

## How to use them
1. Search first, then read the most relevant pages by ID.
2. Cite page titles and links when you answer from wiki content.
3. If a tool returns "Error: ...", read the message: validation errors mean the
   input must change, rate limit and server errors mean you can try again later.

## Resources and prompts
- confluence://page/{id} exposes a page as Markdown.
- confluence://health exposes the health report.
- The summarize-page and research-topic prompts run the usual workflows.`
}
