package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/TelesNascimento25/Checkout-service/db"
	"github.com/TelesNascimento25/Checkout-service/internal/catalog/cache"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
	"github.com/TelesNascimento25/Checkout-service/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		redisAddr    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (embedded fixture when empty)")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address of the product cache to invalidate (or CHECKOUT_CACHE_REDIS_ADDR env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	if redisAddr == "" {
		redisAddr = os.Getenv("CHECKOUT_CACHE_REDIS_ADDR")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var rdb redis.UniversalClient
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = rdb.Close() }()
	}

	if err := run(ctx, databaseURL, productsFile, rdb); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, rdb redis.UniversalClient) error {
	products, err := loadProducts(productsFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	if err := postgres.NewCatalog(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	if rdb != nil {
		slog.Info("invalidating product cache", slog.Int("count", len(products)))
		if err := cache.InvalidateProducts(ctx, rdb, products); err != nil {
			return errors.Wrap(err, "invalidate product cache")
		}
	}
	for _, p := range products {
		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.Int("promotions", len(p.Promotions)),
		)
	}
	return nil
}

func loadProducts(path string) ([]product.Product, error) {
	data := db.SeedProducts
	if path != "" {
		slog.Info("reading products file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}

	products, err := product.DecodeList(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "parse products")
	}
	return products, nil
}
