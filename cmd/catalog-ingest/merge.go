package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineSize   = 1 << 20
)

// shardResult splits a shard's products by whether a later shard may
// redefine them.
type shardResult struct {
	// final products provably absent from every later shard.
	final []product.Product
	// shadowed products whose id tested positive in a later shard's filter.
	shadowed map[string]product.Product
}

// mergeShards reads gzip JSONL shards ordered by precedence and returns one
// product per id, taken from the last shard defining it. Bloom filters keep
// only possibly-redefined products in memory until the merge.
func mergeShards(ctx context.Context, shards []string, capacity uint) ([]product.Product, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("shards", len(shards)))

	filters := make([]*bloom.BloomFilter, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range shards {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			n, err := streamShard(gctx, path, func(p product.Product) {
				filter.AddString(p.ID)
			})
			if err != nil {
				return errors.Wrapf(err, "index shard %s", path)
			}
			slog.Info("pass 1 complete", slog.String("shard", path), slog.Int("products", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("pass 2: splitting products")

	results := make([]shardResult, len(shards))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range shards {
		g.Go(func() error {
			res := shardResult{shadowed: make(map[string]product.Product)}
			final := make(map[string]product.Product)
			later := filters[i+1:]

			_, err := streamShard(gctx, path, func(p product.Product) {
				for _, f := range later {
					if f.TestString(p.ID) {
						res.shadowed[p.ID] = p
						return
					}
				}
				final[p.ID] = p
			})
			if err != nil {
				return errors.Wrapf(err, "split shard %s", path)
			}
			for _, p := range final {
				res.final = append(res.final, p)
			}
			slog.Info("pass 2 complete",
				slog.String("shard", path),
				slog.Int("final", len(res.final)),
				slog.Int("shadowed", len(res.shadowed)),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]product.Product)
	for _, r := range results {
		for id, p := range r.shadowed {
			merged[id] = p
		}
	}
	for _, r := range results {
		for _, p := range r.final {
			merged[p.ID] = p
		}
	}

	out := make([]product.Product, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// streamShard decodes one product per line of a gzip file. Blank lines are
// skipped.
func streamShard(ctx context.Context, path string, fn func(p product.Product)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var (
		count   int
		line    int
		scanner = bufio.NewScanner(gz)
	)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var p product.Product
		if err := p.Decode(jx.DecodeBytes(scanner.Bytes())); err != nil {
			return count, errors.Wrapf(err, "%s:%d", path, line)
		}
		fn(p)

		count++
		if count%progressEvery == 0 {
			slog.Info("shard progress", slog.String("shard", path), slog.Int("products", count))
		}
	}
	if err := scanner.Err(); err != nil {
		return count, errors.Wrapf(err, "scan %s", path)
	}
	return count, nil
}
