package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TelesNascimento25/Checkout-service/db"
	"github.com/TelesNascimento25/Checkout-service/internal/catalog/cache"
	"github.com/TelesNascimento25/Checkout-service/internal/catalog/remote"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
	"github.com/TelesNascimento25/Checkout-service/internal/handler"
	"github.com/TelesNascimento25/Checkout-service/internal/outbox"
	"github.com/TelesNascimento25/Checkout-service/internal/pricing"
	"github.com/TelesNascimento25/Checkout-service/internal/storage/memory"
	"github.com/TelesNascimento25/Checkout-service/internal/storage/postgres"
	"github.com/TelesNascimento25/Checkout-service/pkg/health"
	"github.com/TelesNascimento25/Checkout-service/pkg/httpmiddleware"
)

// Service holds the wired application.
type Service struct {
	Handler http.Handler
	Health  *health.Health
	// Events is the outbox of recorded basket events.
	Events outbox.Source

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// NewService builds every dependency and the HTTP handler chain.
func NewService(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (_ *Service, rerr error) {
	s := &Service{Health: health.New()}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()
	s.Health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// PostgreSQL pool + migrations.
	var pool *pgxpool.Pool
	if cfg.needsDatabase() {
		var err error
		pool, err = postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		s.Health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	}

	catalog, err := newCatalog(cfg, pool)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		s.closers = append(s.closers, func() { _ = rdb.Close() })

		s.Health.AddReadinessCheck("redis", time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		catalog = cache.New(catalog, rdb, cfg.Cache.TTL)
	}

	engine, err := pricing.NewEngine(catalog, pricing.Options{
		MemoSize:       cfg.Pricing.MemoSize,
		MemoTTL:        cfg.Pricing.MemoTTL,
		TracerProvider: tp,
		MeterProvider:  mp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pricing engine")
	}

	var store basket.Store
	switch cfg.Storage {
	case StorageMemory:
		m := memory.NewStore()
		store, s.Events = m, m
	default:
		store, s.Events = postgres.NewBasketStore(pool), postgres.NewOutbox(pool)
	}

	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.Get("/livez", s.Health.LiveEndpoint)
	r.Get("/readyz", s.Health.ReadyEndpoint)
	handler.NewHandler(basket.NewManager(store, engine), catalog).Mount(r)

	s.Handler = httpmiddleware.Wrap(r,
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			Headers:          []string{"Content-Type", "X-Request-ID"},
			Expose:           []string{"Location", "X-Request-ID"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Instrument("checkout-api", tp, mp),
	)
	return s, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("catalog", cfg.Catalog.Source),
	)

	svc, err := NewService(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer svc.Close()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.Handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Outbox.Brokers) > 0 {
		writer := outbox.NewKafkaWriter(cfg.Outbox.Topic, cfg.Outbox.Brokers...)
		poller := outbox.NewPoller(svc.Events, writer, cfg.Outbox.Interval, cfg.Outbox.BatchSize)
		g.Go(func() error {
			defer func() {
				if err := writer.Close(); err != nil {
					lg.Warn("Close kafka writer", zap.Error(err))
				}
			}()
			lg.Info("Publishing basket events",
				zap.Strings("brokers", cfg.Outbox.Brokers),
				zap.String("topic", cfg.Outbox.Topic),
			)
			return poller.Run(gctx)
		})
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		svc.Health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	g.Go(func() error {
		svc.Health.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

func newCatalog(cfg *Config, pool *pgxpool.Pool) (product.Catalog, error) {
	switch cfg.Catalog.Source {
	case CatalogRemote:
		return remote.New(remote.Config{
			BaseURL: cfg.Catalog.URL,
			Timeout: cfg.Catalog.Timeout,
			Retries: cfg.Catalog.Retries,
		}), nil
	case CatalogMemory:
		products, err := product.DecodeList(jx.DecodeBytes(db.SeedProducts))
		if err != nil {
			return nil, errors.Wrap(err, "decode seed catalog")
		}
		return memory.NewCatalog(products), nil
	default:
		return postgres.NewCatalog(pool), nil
	}
}
