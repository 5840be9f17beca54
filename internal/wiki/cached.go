package wiki

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/HendryAvila/confluence-mcp/internal/cache"
)

// CachedClient serves GetPage from a cache and delegates everything else.
// Cache failures are logged and never surface to the caller.
type CachedClient struct {
	Client
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient wraps next so pages are kept in c for ttl.
func NewCachedClient(next Client, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{Client: next, cache: c, ttl: ttl, logger: logger}
}

func pageKey(id string) string { return "page:" + id }

// GetPage returns the cached page or fetches and stores it.
func (c *CachedClient) GetPage(ctx context.Context, id string) (*Page, error) {
	key := pageKey(id)

	raw, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("page cache read failed", "page_id", id, "error", err)
	case ok:
		var p Page
		if err := json.Unmarshal(raw, &p); err == nil {
			c.logger.Debug("page cache hit", "page_id", id)
			return &p, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "page_id", id)
	}

	p, err := c.Client.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("page cache write failed", "page_id", id, "error", err)
		}
	}
	return p, nil
}
