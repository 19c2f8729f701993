// Package query caches fetch results under versioned keys.
//
// A key is an ordered list of strings. Changing any element is the same as
// invalidating: the next evaluation sees a new key and fetches again.
package query

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cacheable fetch.
type Key []string

func (k Key) String() string { return strings.Join(k, "\x1f") }

// Equal reports whether k and o have the same elements in the same order.
func (k Key) Equal(o Key) bool { return slices.Equal(k, o) }

// Fetcher produces the value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Client holds the cache shared by every query. Safe for concurrent use.
type Client struct {
	cache  *gocache.Cache
	group  singleflight.Group
	logger *log.Logger
}

// NewClient keeps successful results for ttl (0 keeps them until removed).
func NewClient(ttl time.Duration, logger *log.Logger) *Client {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{cache: gocache.New(ttl, time.Minute), logger: logger}
}

// Fetch returns the cached value for key, or calls fn. Concurrent callers
// with the same key share one call to fn. Errors are never cached.
func (c *Client) Fetch(ctx context.Context, key Key, fn Fetcher) (any, error) {
	k := key.String()
	if v, ok := c.cache.Get(k); ok {
		c.logger.Debug("query cache hit", "key", []string(key))
		return v, nil
	}
	v, err, shared := c.group.Do(k, func() (any, error) {
		if v, ok := c.cache.Get(k); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(k, v)
		return v, nil
	})
	if err != nil {
		c.logger.Debug("query failed", "key", []string(key), "shared", shared, "err", err)
		return nil, err
	}
	return v, nil
}

// Peek returns the cached value without fetching.
func (c *Client) Peek(key Key) (any, bool) {
	return c.cache.Get(key.String())
}

// Remove drops the cached value for key.
func (c *Client) Remove(key Key) {
	c.cache.Delete(key.String())
}
