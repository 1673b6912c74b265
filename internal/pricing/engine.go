// Package pricing computes raw and promotion-adjusted basket totals.
package pricing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/promotion"
)

// ProductNotFoundError indicates a line references a product the catalog
// does not know.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Line is a product reference with a quantity.
type Line struct {
	ProductID string
	Quantity  int
}

// Quote holds both totals, in pence, computed from one catalog snapshot.
type Quote struct {
	Total       int64
	Promotional int64
}

// Options configures an Engine. Zero values disable the memo and use no-op
// telemetry.
type Options struct {
	MemoSize       int
	MemoTTL        time.Duration
	FetchTimeout   time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type snapshot map[string]product.Product

const defaultFetchTimeout = 10 * time.Second

// Engine resolves products from a catalog and prices lines against them.
//
// QuoteSnapshot memoizes resolutions for a short TTL under a caller-supplied
// snapshot token combined with the exact item multiset, so an entry is never
// reused once either changes. Quote always reads the catalog.
type Engine struct {
	catalog      product.Catalog
	memo         *expirable.LRU[string, snapshot]
	group        singleflight.Group
	fetchTimeout time.Duration

	tracer trace.Tracer
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewEngine creates an Engine backed by catalog.
func NewEngine(catalog product.Catalog, opts Options) (*Engine, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := opts.MeterProvider.Meter("checkout/pricing")
	hits, err := meter.Int64Counter("checkout.pricing.memo.hits",
		metric.WithDescription("Product resolutions served from the pricing memo"))
	if err != nil {
		return nil, errors.Wrap(err, "create hits counter")
	}
	misses, err := meter.Int64Counter("checkout.pricing.memo.misses",
		metric.WithDescription("Product resolutions that reached the catalog"))
	if err != nil {
		return nil, errors.Wrap(err, "create misses counter")
	}

	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	e := &Engine{
		catalog:      catalog,
		fetchTimeout: opts.FetchTimeout,
		tracer:       opts.TracerProvider.Tracer("checkout/pricing"),
		hits:         hits,
		misses:       misses,
	}
	if opts.MemoTTL > 0 && opts.MemoSize > 0 {
		e.memo = expirable.NewLRU[string, snapshot](opts.MemoSize, nil, opts.MemoTTL)
	}
	return e, nil
}

// TotalPrice returns the sum of quantity*unitPrice over lines, in pence.
func (e *Engine) TotalPrice(ctx context.Context, lines []Line) (int64, error) {
	q, err := e.Quote(ctx, lines)
	if err != nil {
		return 0, err
	}
	return q.Total, nil
}

// PromotionalPrice returns the sum of promotion-adjusted line prices, in pence.
func (e *Engine) PromotionalPrice(ctx context.Context, lines []Line) (int64, error) {
	q, err := e.Quote(ctx, lines)
	if err != nil {
		return 0, err
	}
	return q.Promotional, nil
}

// Quote resolves the products once from the catalog and computes both totals
// from that result.
func (e *Engine) Quote(ctx context.Context, lines []Line) (Quote, error) {
	return e.QuoteSnapshot(ctx, "", lines)
}

// QuoteSnapshot is Quote for an identified snapshot of a basket. The token
// must change whenever the basket's items change. Resolutions are memoized
// under the token and the exact item multiset; an empty token bypasses the
// memo.
func (e *Engine) QuoteSnapshot(ctx context.Context, token string, lines []Line) (Quote, error) {
	products, err := e.resolve(ctx, token, lines)
	if err != nil {
		return Quote{}, err
	}

	var q Quote
	for _, l := range lines {
		p := products[l.ProductID]
		q.Total += p.Price * int64(l.Quantity)
		q.Promotional += promotion.Apply(p.Promotions, l.Quantity, p.Price)
	}
	return q, nil
}

func (e *Engine) resolve(ctx context.Context, token string, lines []Line) (snapshot, error) {
	ids := distinctIDs(lines)
	if len(ids) == 0 {
		return snapshot{}, nil
	}

	ctx, span := e.tracer.Start(ctx, "pricing.resolve",
		trace.WithAttributes(
			attribute.Int("pricing.products", len(ids)),
			attribute.Bool("pricing.memoized", token != ""),
		))
	defer span.End()

	products, err := e.lookup(ctx, token, lines, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
	}
	return products, nil
}

func (e *Engine) lookup(ctx context.Context, token string, lines []Line, ids []string) (snapshot, error) {
	if e.memo == nil || token == "" {
		e.misses.Add(ctx, 1)
		return e.fetch(ctx, ids)
	}

	key := memoKey(token, lines)
	if s, ok := e.memo.Get(key); ok {
		e.hits.Add(ctx, 1)
		return s, nil
	}

	e.misses.Add(ctx, 1)
	// The shared fetch outlives any single caller; each caller stops waiting
	// on its own context.
	ch := e.group.DoChan(key, func() (any, error) {
		if s, ok := e.memo.Get(key); ok {
			return s, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.fetchTimeout)
		defer cancel()

		s, err := e.fetch(fetchCtx, ids)
		if err != nil {
			return nil, err
		}
		// Incomplete results are not memoized so newly added products show up.
		if len(s) == len(ids) {
			e.memo.Add(key, s)
		}
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(snapshot), nil
	}
}

func (e *Engine) fetch(ctx context.Context, ids []string) (snapshot, error) {
	found, err := e.catalog.FindAllByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	s := make(snapshot, len(found))
	for _, p := range found {
		s[p.ID] = p
	}
	return s, nil
}

// memoKey identifies a snapshot token together with the exact item multiset:
// product ids sorted, with the quantities of repeated lines summed.
func memoKey(token string, lines []Line) string {
	qty := make(map[string]int, len(lines))
	for _, l := range lines {
		qty[l.ProductID] += l.Quantity
	}
	ids := slices.Sorted(maps.Keys(qty))

	var b strings.Builder
	b.WriteString(token)
	for _, id := range ids {
		b.WriteByte(0)
		b.WriteString(id)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(qty[id]))
	}
	return b.String()
}

// distinctIDs returns the sorted, de-duplicated product ids of lines.
func distinctIDs(lines []Line) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
