// Package remote reads the product catalog from an external HTTP products API.
package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
)

var _ product.Catalog = (*Catalog)(nil)

// Config controls the HTTP client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Retries     int
	Concurrency int
}

// Catalog implements product.Catalog over GET /products and
// GET /products/{id}. A 404 means the product does not exist.
type Catalog struct {
	client      *resty.Client
	concurrency int
}

// New creates a Catalog. Transient failures (network errors and 5xx) are
// retried up to cfg.Retries times.
func New(cfg Config) *Catalog {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(50 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Catalog{client: client, concurrency: concurrency}
}

// List returns every product the API knows.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/products")
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("get products: unexpected status %s", resp.Status())
	}
	products, err := product.DecodeList(jx.DecodeBytes(resp.Body()))
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

// FindByID fetches one product, returning product.ErrNotFound on 404.
func (c *Catalog) FindByID(ctx context.Context, id string) (*product.Product, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/products/{id}")
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, product.ErrNotFound
	case !resp.IsSuccess():
		return nil, errors.Errorf("get product %q: unexpected status %s", id, resp.Status())
	}

	var p product.Product
	if err := p.Decode(jx.DecodeBytes(resp.Body())); err != nil {
		return nil, errors.Wrapf(err, "decode product %q", id)
	}
	return &p, nil
}

// FindAllByID fetches the products concurrently, skipping unknown ids.
func (c *Catalog) FindAllByID(ctx context.Context, ids []string) ([]product.Product, error) {
	found := make([]*product.Product, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := c.FindByID(ctx, id)
			if errors.Is(err, product.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]product.Product, 0, len(ids))
	for _, p := range found {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}
