// Package cache provides a Redis read-through cache in front of a product catalog.
package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
)

var _ product.Catalog = (*Catalog)(nil)

// Catalog caches products of the wrapped catalog in Redis. Cache failures
// are logged and fall through to the wrapped catalog.
type Catalog struct {
	next    product.Catalog
	client  redis.UniversalClient
	baseTTL time.Duration
}

// New wraps next with a cache whose entries live for ttl plus up to 10% jitter.
func New(next product.Catalog, client redis.UniversalClient, ttl time.Duration) *Catalog {
	return &Catalog{
		next:    next,
		client:  client,
		baseTTL: ttl,
	}
}

// List is not cached.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	return c.next.List(ctx)
}

// FindByID reads through the cache.
func (c *Catalog) FindByID(ctx context.Context, id string) (*product.Product, error) {
	products, err := c.FindAllByID(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, product.ErrNotFound
	}
	return &products[0], nil
}

// FindAllByID serves cached products with one MGET and loads the rest from
// the wrapped catalog.
func (c *Catalog) FindAllByID(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	lg := zctx.From(ctx)

	cached, err := c.get(ctx, ids)
	if err != nil {
		lg.Warn("Product cache read failed", zap.Error(err))
		cached = map[string]product.Product{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		loaded, err := c.next.FindAllByID(ctx, missing)
		if err != nil {
			return nil, err
		}
		if err := c.set(ctx, loaded); err != nil {
			lg.Warn("Product cache write failed", zap.Error(err))
		}
		for _, p := range loaded {
			cached[p.ID] = p
		}
	}

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := cached[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Invalidate drops the cached entries of ids.
func (c *Catalog) Invalidate(ctx context.Context, ids ...string) error {
	return Invalidate(ctx, c.client, ids...)
}

// Invalidate drops the cached entries of ids from client. Catalog writers
// call it after each write, since readers otherwise keep serving the old
// product until its entry expires.
func Invalidate(ctx context.Context, client redis.Cmdable, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// InvalidateProducts drops the cached entries of products.
func InvalidateProducts(ctx context.Context, client redis.Cmdable, products []product.Product) error {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return Invalidate(ctx, client, ids...)
}

func (c *Catalog) get(ctx context.Context, ids []string) (map[string]product.Product, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}

	out := make(map[string]product.Product, len(ids))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p product.Product
		if err := p.UnmarshalJSON([]byte(s)); err != nil {
			return nil, errors.Wrapf(err, "unmarshal product %q", ids[i])
		}
		out[ids[i]] = p
	}
	return out, nil
}

func (c *Catalog) set(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range products {
			data, err := p.MarshalJSON()
			if err != nil {
				return errors.Wrapf(err, "marshal product %q", p.ID)
			}
			pipe.Set(ctx, cacheKey(p.ID), data, c.ttl())
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (c *Catalog) ttl() time.Duration {
	jitter := c.baseTTL / 10
	if jitter <= 0 {
		return c.baseTTL
	}
	return c.baseTTL + rand.N(jitter)
}

func cacheKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}
