//go:build integration

package app

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("checkout"),
		tcpostgres.WithUsername("checkout"),
		tcpostgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestService_Postgres(t *testing.T) {
	cfg := memoryConfig()
	cfg.DatabaseURL = startPostgres(t)
	cfg.Storage = StoragePostgres

	svc, srv := newTestService(t, cfg)
	svc.Health.SetReady(true)

	resp, _ := call(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, srv, http.MethodPost, "/baskets", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	location := resp.Header.Get("Location")
	require.NotEmpty(t, location)

	resp, body = call(t, srv, http.MethodPost, location+"/item", `{"productId":"PWWe3w1SDU","quantity":4}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	resp, _ = call(t, srv, http.MethodPost, location+"/item", `{"productId":"Dwt5F7KAhi","quantity":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("ConcurrentReads", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, body := call(t, srv, http.MethodGet, location+"/savings", "")
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, `{"totalPrice":61.94,"promotionalPrice":37.97,"savings":23.97}`, body)
			}()
		}
		wg.Wait()
	})

	resp, body = call(t, srv, http.MethodPost, location+"/checkout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"CHECKED_OUT","total":61.94`)

	resp, _ = call(t, srv, http.MethodPost, location+"/cancel", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	events, err := svc.Events.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.EqualValues(t, "basket.checked_out", events[0].Type)
}
