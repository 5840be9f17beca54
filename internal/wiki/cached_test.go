package wiki

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/cache"
)

// countingClient counts GetPage calls on top of a LocalStore.
type countingClient struct {
	Client
	gets int
}

func (c *countingClient) GetPage(ctx context.Context, id string) (*Page, error) {
	c.gets++
	return c.Client.GetPage(ctx, id)
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Close() error { return nil }

func TestCachedClient_ServesSecondReadFromCache(t *testing.T) {
	inner := &countingClient{Client: newTestStore(t)}
	c := NewCachedClient(inner, cache.NewMemory(10), time.Minute, nil)
	ctx := context.Background()

	first, err := c.GetPage(ctx, "101")
	require.NoError(t, err)
	second, err := c.GetPage(ctx, "101")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, first, second)
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	inner := &countingClient{Client: newTestStore(t)}
	c := NewCachedClient(inner, cache.NewMemory(10), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetPage(ctx, "999")
		assert.Equal(t, apierr.KindNotFound, apierr.Classify(err).Kind)
	}
	assert.Equal(t, 2, inner.gets)
}

func TestCachedClient_BypassesBrokenCache(t *testing.T) {
	inner := &countingClient{Client: newTestStore(t)}
	c := NewCachedClient(inner, brokenCache{}, time.Minute, nil)

	p, err := c.GetPage(context.Background(), "102")
	require.NoError(t, err)
	assert.Equal(t, "API Documentation", p.Title)
}

func TestCachedClient_DelegatesOtherCalls(t *testing.T) {
	store := newTestStore(t)
	c := NewCachedClient(store, cache.NewMemory(10), time.Minute, nil)

	results, err := c.Search(context.Background(), "onboarding", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, store.BaseURL(), c.BaseURL())
}
