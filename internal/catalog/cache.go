// Package catalog serves product, category and brand reads.
// Products come from a short-TTL cache that coalesces concurrent misses into a
// single upstream fetch and falls back to the last good list on failure.
package catalog

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"

	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
)

// DefaultTTL is how long a fetched product list stays fresh.
const DefaultTTL = 60 * time.Second

// FetchFunc loads the full product list.
type FetchFunc func(ctx context.Context) ([]model.Product, error)

// LookupFunc loads a single product.
type LookupFunc func(ctx context.Context, id string) (*model.Product, error)

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source. Tests use it to step past the TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// Cache holds the product list. Entries and expiry are replaced together
// under mu; a list is fresh while now < expiresAt and it is non-empty.
type Cache struct {
	fetch  FetchFunc
	lookup LookupFunc
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	policy *bluemonday.Policy

	mu        sync.RWMutex
	entries   []model.Product
	index     map[string]int
	expiresAt time.Time

	group singleflight.Group
}

// NewCache creates an empty cache.
func NewCache(fetch FetchFunc, lookup LookupFunc, opts ...Option) *Cache {
	c := &Cache{
		fetch:  fetch,
		lookup: lookup,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
		policy: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAll returns the product list. Never fails: on upstream failure it returns
// the last good list, or an empty one. The returned slice is shared and must
// not be modified.
func (c *Cache) GetAll(ctx context.Context) []model.Product {
	if entries, ok := c.fresh(); ok {
		metrics.CatalogCache.WithLabelValues("hit").Inc()
		return entries
	}
	metrics.CatalogCache.WithLabelValues("miss").Inc()

	// The fetch is shared, so it must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("products", func() (any, error) {
		return c.load(shared), nil
	})

	select {
	case res := <-ch:
		return res.Val.([]model.Product)
	case <-ctx.Done():
		return c.lastGood()
	}
}

// GetByID returns a product from the resident list, fresh or stale, without a
// network call. Otherwise it fetches the single product; that result is not
// added to the list.
func (c *Cache) GetByID(ctx context.Context, id string) (*model.Product, bool) {
	c.mu.RLock()
	i, ok := c.index[id]
	var p model.Product
	if ok {
		p = c.entries[i]
	}
	c.mu.RUnlock()
	if ok {
		return &p, true
	}

	fetched, err := c.lookup(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			c.logger.Warn("product lookup failed",
				slog.String("product_id", id),
				slog.String("kind", model.KindOf(err)),
				slog.Any("error", err),
			)
			metrics.SwallowedErrors.WithLabelValues("catalog", model.KindOf(err)).Inc()
		}
		return nil, false
	}
	if fetched == nil {
		return nil, false
	}
	clean := c.sanitize(*fetched)
	return &clean, true
}

// Invalidate expires the list without dropping it, so the next GetAll refetches
// but failures can still fall back to it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) fresh() ([]model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) > 0 && c.now().Before(c.expiresAt) {
		return c.entries, true
	}
	return nil, false
}

func (c *Cache) lastGood() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) > 0 {
		return c.entries
	}
	return []model.Product{}
}

// load runs inside the singleflight call.
func (c *Cache) load(ctx context.Context) []model.Product {
	// A caller that missed just before the previous fetch completed lands here
	// after it; serve that result rather than fetching again.
	if entries, ok := c.fresh(); ok {
		return entries
	}

	metrics.CatalogFetches.Inc()
	products, err := c.fetch(ctx)
	if err != nil {
		fallback := c.lastGood()
		event := "stale"
		if len(fallback) == 0 {
			event = "empty"
		}
		metrics.CatalogCache.WithLabelValues(event).Inc()
		metrics.SwallowedErrors.WithLabelValues("catalog", model.KindOf(err)).Inc()
		c.logger.Warn("product fetch failed, serving fallback",
			slog.String("kind", model.KindOf(err)),
			slog.Int("fallback_size", len(fallback)),
			slog.Any("error", err),
		)
		return fallback
	}

	entries := make([]model.Product, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		entries[i] = c.sanitize(p)
		index[entries[i].Key()] = i
	}

	c.mu.Lock()
	c.entries = entries
	c.index = index
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()

	c.logger.Debug("product cache refreshed", slog.Int("count", len(entries)))
	return entries
}

// sanitize reduces merchant-supplied descriptions to plain text.
func (c *Cache) sanitize(p model.Product) model.Product {
	if p.Description != "" {
		p.Description = html.UnescapeString(c.policy.Sanitize(p.Description))
	}
	return p
}
