package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/TelesNascimento25/Checkout-service/internal/catalog/cache"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
	"github.com/TelesNascimento25/Checkout-service/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		redisAddr   string
		batchSize   int
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog shards")
	flag.StringVar(&pattern, "pattern", "products-*.jsonl.gz", "shard file name pattern; later names win")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address of the product cache to invalidate (or CHECKOUT_CACHE_REDIS_ADDR env)")
	flag.IntVar(&batchSize, "batch-size", 500, "products upserted per transaction")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected products per shard, sizes the bloom filters")
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
	if batchSize <= 0 {
		slog.Error("batch size must be positive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var rdb redis.UniversalClient
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = rdb.Close() }()
	}

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, rdb, batchSize, capacity); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, rdb redis.UniversalClient, batchSize int, capacity uint) error {
	shards, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "match shards")
	}
	if len(shards) == 0 {
		return errors.Errorf("no shards match %s", glob)
	}
	sort.Strings(shards)

	products, err := mergeShards(ctx, shards, capacity)
	if err != nil {
		return err
	}
	slog.Info("merged catalog", slog.Int("shards", len(shards)), slog.Int("products", len(products)))

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeBatches(ctx, postgres.NewCatalog(pool), rdb, products, batchSize)
}

type productWriter interface {
	Upsert(ctx context.Context, products []product.Product) error
}

// writeBatches upserts products batchSize at a time. When rdb is set, the
// cached entries of every written batch are dropped before the next one.
func writeBatches(ctx context.Context, w productWriter, rdb redis.Cmdable, products []product.Product, batchSize int) error {
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		batch := products[start:end]
		if err := w.Upsert(ctx, batch); err != nil {
			return errors.Wrapf(err, "upsert products %d-%d", start, end)
		}
		if rdb != nil {
			if err := cache.InvalidateProducts(ctx, rdb, batch); err != nil {
				return errors.Wrapf(err, "invalidate cached products %d-%d", start, end)
			}
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(products)))
	}
	return nil
}
