package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

func memoryConfig() *Config {
	return &Config{
		Storage: StorageMemory,
		Catalog: CatalogConfig{Source: CatalogMemory},
		Pricing: PricingConfig{MemoSize: 16, MemoTTL: time.Minute},
		RateLimit: RateLimitConfig{
			Max:    1000,
			Window: time.Minute,
		},
		CORS: CORSConfig{Origins: []string{"*"}},
	}
}

func newTestService(t *testing.T, cfg *Config) (*Service, *httptest.Server) {
	t.Helper()
	require.NoError(t, cfg.Validate())

	svc, err := NewService(context.Background(), zaptest.NewLogger(t), cfg,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(svc.Handler)
	t.Cleanup(srv.Close)
	return svc, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestService_Checkout(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Cache = CacheConfig{RedisAddr: mr.Addr(), TTL: time.Minute}

	svc, srv := newTestService(t, cfg)
	svc.Health.SetReady(true)

	resp, _ := call(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodPost, "/baskets", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	call(t, srv, http.MethodPost, "/baskets/1/item", `{"productId":"PWWe3w1SDU","quantity":5}`)
	call(t, srv, http.MethodPost, "/baskets/1/item", `{"productId":"Dwt5F7KAhi","quantity":2}`)

	resp, body := call(t, srv, http.MethodGet, "/baskets/1/savings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"totalPrice":71.93,"promotionalPrice":47.96,"savings":23.97}`, body)
	assert.True(t, mr.Exists("product:PWWe3w1SDU"))

	resp, body = call(t, srv, http.MethodPost, "/baskets/1/checkout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"total":71.93`)

	events, err := svc.Events.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].BasketID)

	mr.Close()
	resp, body = call(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, `"redis"`)
}

func TestService_NotReadyUntilMarked(t *testing.T) {
	_, srv := newTestService(t, memoryConfig())

	resp, _ := call(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestService_RateLimit(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimit.Max = 2

	_, srv := newTestService(t, cfg)

	for range 2 {
		resp, _ := call(t, srv, http.MethodGet, "/products", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := call(t, srv, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
