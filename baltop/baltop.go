// Package baltop provides a top-balances read model over the store's
// aggregate query, with an optional Redis cache in front of it.
package baltop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veldtmc/econledger/store"
)

// DefaultTTL is how long a cached board stays fresh when no TTL is
// configured.
const DefaultTTL = 30 * time.Second

// Board serves ranked balance listings for one (region, currency) pair
// at a time. Reads go to the cache first when one is configured; a miss
// or a cache error falls through to the store.
type Board struct {
	store  store.Store
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Board.
type Option func(*Board)

// WithCache fronts the board with a Redis cache.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(b *Board) {
		b.cache = client
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithLogger sets the board's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a board over s.
func New(s store.Store, opts ...Option) *Board {
	b := &Board{
		store:  s,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func cacheKey(region string, cur int64, limit int) string {
	return fmt.Sprintf("econledger:baltop:%s:%d:%d", region, cur, limit)
}

// Top returns up to limit accounts ordered by descending combined
// balance for the pair. Cached results may lag the store by up to the
// configured TTL.
func (b *Board) Top(ctx context.Context, region string, cur int64, limit int) ([]store.BalanceRow, error) {
	if b.cache != nil {
		if rows, ok := b.cached(ctx, region, cur, limit); ok {
			return rows, nil
		}
	}
	return b.Refresh(ctx, region, cur, limit)
}

// Refresh bypasses the cache, queries the store, and repopulates the
// cache entry for the pair.
func (b *Board) Refresh(ctx context.Context, region string, cur int64, limit int) ([]store.BalanceRow, error) {
	rows, err := b.store.TopBalances(ctx, region, cur, limit)
	if err != nil {
		return nil, fmt.Errorf("econledger/baltop: query: %w", err)
	}

	if b.cache != nil {
		payload, err := json.Marshal(rows)
		if err == nil {
			err = b.cache.Set(ctx, cacheKey(region, cur, limit), payload, b.ttl).Err()
		}
		if err != nil {
			// Cache population is best effort; the rows are already in hand.
			b.logger.Warn("baltop cache write failed",
				"region", region,
				"currency", cur,
				"error", err,
			)
		}
	}
	return rows, nil
}

// Invalidate drops the cached boards for the pair across common limits.
// A write-heavy caller can let TTL expiry handle staleness instead.
func (b *Board) Invalidate(ctx context.Context, region string, cur int64) error {
	if b.cache == nil {
		return nil
	}
	pattern := fmt.Sprintf("econledger:baltop:%s:%d:*", region, cur)
	iter := b.cache.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := b.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("econledger/baltop: invalidate: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("econledger/baltop: invalidate scan: %w", err)
	}
	return nil
}

func (b *Board) cached(ctx context.Context, region string, cur int64, limit int) ([]store.BalanceRow, bool) {
	payload, err := b.cache.Get(ctx, cacheKey(region, cur, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Warn("baltop cache read failed",
				"region", region,
				"currency", cur,
				"error", err,
			)
		}
		return nil, false
	}

	var rows []store.BalanceRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		b.logger.Warn("baltop cache entry corrupt",
			"region", region,
			"currency", cur,
			"error", err,
		)
		return nil, false
	}
	return rows, true
}
