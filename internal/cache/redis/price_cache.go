// Package redis mirrors the bot's latest per-exchange prices into Redis so
// external consumers can read the same numbers the spread evaluator sees.
// Only the latest value per venue is kept; this is a mirror, not a tick
// history.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

// Config holds connection parameters for the price mirror.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// PriceCache implements domain.PriceCache on a Redis hash per venue. Each
// entry lives at "price:{exchange}:{symbol}" with fields "price" and "ts"
// (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
}

// New connects to Redis, pings it to verify connectivity, and returns the
// mirror.
func New(ctx context.Context, cfg Config) (*PriceCache, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &PriceCache{rdb: rdb}, nil
}

// Close releases the connection pool.
func (pc *PriceCache) Close() error {
	return pc.rdb.Close()
}

func priceKey(exchange, symbol string) string {
	return "price:" + exchange + ":" + symbol
}

// SetPrice stores the tick's price and observation time.
func (pc *PriceCache) SetPrice(ctx context.Context, tick domain.PriceTick) error {
	fields := map[string]interface{}{
		"price": tick.Price.String(),
		"ts":    strconv.FormatInt(tick.ObservedAt.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(tick.Exchange, tick.Symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s/%s: %w", tick.Exchange, tick.Symbol, err)
	}
	return nil
}

// GetPrice retrieves the latest mirrored price and timestamp for an exchange.
// It returns domain.ErrNotFound when no tick has been mirrored yet.
func (pc *PriceCache) GetPrice(ctx context.Context, exchange, symbol string) (decimal.Decimal, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(exchange, symbol)).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s/%s: %w", exchange, symbol, err)
	}
	if len(vals) == 0 {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}

	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse price %q: %w", vals["price"], err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse ts %q: %w", vals["ts"], err)
	}
	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
