package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/promotion"
)

func newServer(t *testing.T, products ...product.Product) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var failures atomic.Int32
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, _ *http.Request) {
		var e jx.Encoder
		e.ArrStart()
		for _, p := range products {
			p.Encode(&e)
		}
		e.ArrEnd()
		_, _ = w.Write(e.Bytes())
	})
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "flaky" && failures.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if id == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		p, ok := byID[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		data, _ := p.MarshalJSON()
		_, _ = w.Write(data)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &failures
}

var (
	salad = product.Product{ID: "C8GDyLrHJb", Name: "Amazing Salad!", Price: 499, Promotions: []promotion.Promotion{
		{ID: "Gm1piQWe5o", Kind: promotion.KindFlatPercent, Amount: 10},
	}}
	fries = product.Product{ID: "4MB7UfpTQs", Name: "Boring Fries!", Price: 199}
	flaky = product.Product{ID: "flaky", Name: "Flaky", Price: 1}
)

func newCatalog(srv *httptest.Server, retries int) *Catalog {
	return New(Config{BaseURL: srv.URL, Timeout: time.Second, Retries: retries})
}

func TestFindByID(t *testing.T) {
	srv, _ := newServer(t, salad, fries)
	c := newCatalog(srv, 0)
	ctx := context.Background()

	p, err := c.FindByID(ctx, salad.ID)
	require.NoError(t, err)
	assert.Equal(t, salad, *p)

	_, err = c.FindByID(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)

	_, err = c.FindByID(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, product.ErrNotFound)
}

func TestFindByID_Retries(t *testing.T) {
	srv, failures := newServer(t, flaky)
	c := newCatalog(srv, 2)

	p, err := c.FindByID(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, "flaky", p.ID)
	assert.Equal(t, int32(2), failures.Load())
}

func TestFindAllByID(t *testing.T) {
	srv, _ := newServer(t, salad, fries)
	c := newCatalog(srv, 0)

	got, err := c.FindAllByID(context.Background(), []string{fries.ID, "missing", salad.ID})
	require.NoError(t, err)
	assert.Equal(t, []product.Product{fries, salad}, got)

	_, err = c.FindAllByID(context.Background(), []string{fries.ID, "broken"})
	require.Error(t, err)
}

func TestList(t *testing.T) {
	srv, _ := newServer(t, salad, fries)
	c := newCatalog(srv, 0)

	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []product.Product{salad, fries}, got)
}
