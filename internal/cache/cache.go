// Package cache keeps provider market listings in Redis for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daszybak/omniverse_markets/internal/schema"
)

// DefaultTTL is used when the cache is built with a non-positive TTL.
const DefaultTTL = 30 * time.Second

// kv is the slice of the Redis API the cache uses. *redis.Client satisfies it.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Cache struct {
	r   kv
	ttl time.Duration
}

func New(r kv, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{r: r, ttl: ttl}
}

// Connect dials addr and checks it answers a PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("couldn't ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func keyMarkets(p schema.Provider) string { return "omniverse:markets:" + string(p) }

// GetMarkets reports whether a listing for p was cached.
func (c *Cache) GetMarkets(ctx context.Context, p schema.Provider) ([]schema.Market, bool, error) {
	b, err := c.r.Get(ctx, keyMarkets(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("couldn't get cached markets: %w", err)
	}
	var markets []schema.Market
	if err := json.Unmarshal(b, &markets); err != nil {
		return nil, false, fmt.Errorf("couldn't decode cached markets: %w", err)
	}
	return markets, true, nil
}

func (c *Cache) SetMarkets(ctx context.Context, p schema.Provider, markets []schema.Market) error {
	b, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("couldn't encode markets: %w", err)
	}
	if err := c.r.Set(ctx, keyMarkets(p), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("couldn't cache markets: %w", err)
	}
	return nil
}
