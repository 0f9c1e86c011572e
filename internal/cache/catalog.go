package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danirudp/lipos/domain"
	"golang.org/x/sync/singleflight"
)

type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// CachedCatalog is a read-through product lookup. Cache failures are logged and fall back to the
// source; results may be stale for up to the cache TTL unless invalidated.
type CachedCatalog struct {
	source ProductSource
	cache  ProductCache
	sfg    singleflight.Group // prevents cache stampede
	log    *slog.Logger
}

func NewCachedCatalog(source ProductSource, cache ProductCache, log *slog.Logger) *CachedCatalog {
	if log == nil {
		log = slog.Default()
	}
	return &CachedCatalog{source: source, cache: cache, log: log}
}

// lookupTimeout bounds a shared lookup, which no single caller can cancel.
const lookupTimeout = 5 * time.Second

func (c *CachedCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ch := c.sfg.DoChan(id, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return c.load(lookupCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		cp := *res.Val.(*domain.Product)
		return &cp, nil
	}
}

func (c *CachedCatalog) load(ctx context.Context, id string) (*domain.Product, error) {
	p, err := c.cache.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.WarnContext(ctx, "catalog cache get failed", "product_id", id, "error", err)
	}

	p, err = c.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if errSet := c.cache.Set(ctx, p); errSet != nil {
		c.log.WarnContext(ctx, "catalog cache set failed", "product_id", id, "error", errSet)
	}
	return p, nil
}

// Invalidate drops cached entries so the next read goes to the source.
func (c *CachedCatalog) Invalidate(ctx context.Context, ids ...string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	for _, id := range ids {
		c.sfg.Forget(id)
	}
	if err := c.cache.Delete(ctx, ids...); err != nil {
		c.log.WarnContext(ctx, "catalog cache invalidate failed", "product_ids", ids, "error", err)
	}
}
