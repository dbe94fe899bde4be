package catalog

import (
	"context"
	"errors"
	"log/slog"

	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
)

// Directory serves the uncached category and brand endpoints.
type Directory interface {
	Categories(ctx context.Context) ([]model.Category, error)
	Category(ctx context.Context, id string) (*model.Category, error)
	Brands(ctx context.Context) ([]model.Brand, error)
	Brand(ctx context.Context, id string) (*model.Brand, error)
}

// Catalog is the read side of the storefront. All reads degrade to empty or
// absent results instead of failing.
type Catalog struct {
	cache  *Cache
	dir    Directory
	logger *slog.Logger
}

// New creates a Catalog over a product cache and a category/brand directory.
func New(cache *Cache, dir Directory, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{cache: cache, dir: dir, logger: logger}
}

// Products returns all products.
func (c *Catalog) Products(ctx context.Context) []model.Product {
	return c.cache.GetAll(ctx)
}

// Product returns one product, or false when it does not exist or cannot be loaded.
func (c *Catalog) Product(ctx context.Context, id string) (*model.Product, bool) {
	if id == "" {
		return nil, false
	}
	return c.cache.GetByID(ctx, id)
}

// ProductsByCategory filters the product list by category id.
func (c *Catalog) ProductsByCategory(ctx context.Context, categoryID string) []model.Product {
	return filter(c.cache.GetAll(ctx), func(p model.Product) bool {
		return p.Category != nil && p.Category.ID == categoryID
	})
}

// ProductsByBrand filters the product list by brand id.
func (c *Catalog) ProductsByBrand(ctx context.Context, brandID string) []model.Product {
	return filter(c.cache.GetAll(ctx), func(p model.Product) bool {
		return p.Brand != nil && p.Brand.ID == brandID
	})
}

func (c *Catalog) Categories(ctx context.Context) []model.Category {
	categories, err := c.dir.Categories(ctx)
	if err != nil {
		c.swallow("list categories", err)
		return []model.Category{}
	}
	return categories
}

func (c *Catalog) Category(ctx context.Context, id string) (*model.Category, bool) {
	category, err := c.dir.Category(ctx, id)
	if err != nil {
		c.swallow("get category", err)
		return nil, false
	}
	return category, true
}

func (c *Catalog) Brands(ctx context.Context) []model.Brand {
	brands, err := c.dir.Brands(ctx)
	if err != nil {
		c.swallow("list brands", err)
		return []model.Brand{}
	}
	return brands
}

func (c *Catalog) Brand(ctx context.Context, id string) (*model.Brand, bool) {
	brand, err := c.dir.Brand(ctx, id)
	if err != nil {
		c.swallow("get brand", err)
		return nil, false
	}
	return brand, true
}

func (c *Catalog) swallow(op string, err error) {
	if errors.Is(err, model.ErrNotFound) {
		return
	}
	kind := model.KindOf(err)
	metrics.SwallowedErrors.WithLabelValues("catalog", kind).Inc()
	c.logger.Warn("catalog read failed",
		slog.String("operation", op),
		slog.String("kind", kind),
		slog.Any("error", err),
	)
}

func filter(products []model.Product, keep func(model.Product) bool) []model.Product {
	out := make([]model.Product, 0)
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
