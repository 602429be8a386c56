package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

const notFound = "notfound"

// CachedLookup keeps catalog entries in Redis. Any Redis failure falls
// through to the wrapped lookup.
type CachedLookup struct {
	Inner       Lookup
	Redis       *redis.Client
	TTL         time.Duration
	NotFoundTTL time.Duration
}

func NewCachedLookup(inner Lookup, rdb *redis.Client) *CachedLookup {
	return &CachedLookup{
		Inner:       inner,
		Redis:       rdb,
		TTL:         5 * time.Minute,
		NotFoundTTL: time.Minute,
	}
}

func cacheKey(k string) string {
	return "catalog:product:" + k
}

func (c *CachedLookup) LookupProducts(ctx context.Context, keys []string) (map[string]Entry, error) {
	l := logging.FromContext(ctx).With("component", "catalog.cache")
	out := make(map[string]Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = cacheKey(k)
	}

	misses := keys
	vals, err := c.Redis.MGet(ctx, redisKeys...).Result()
	if err != nil {
		l.Warn("redis_mget_failed", "error", err)
	} else {
		misses = nil
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				misses = append(misses, keys[i])
				continue
			}
			if s == notFound {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(s), &e); err != nil {
				l.Warn("cached_entry_unreadable", "key", keys[i], "error", err)
				misses = append(misses, keys[i])
				continue
			}
			out[keys[i]] = e
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.Inner.LookupProducts(ctx, misses)
	if err != nil {
		return nil, err
	}

	pipe := c.Redis.Pipeline()
	for _, k := range misses {
		e, ok := fetched[k]
		if !ok {
			pipe.Set(ctx, cacheKey(k), notFound, c.NotFoundTTL)
			continue
		}
		out[k] = e
		if data, err := json.Marshal(e); err == nil {
			pipe.Set(ctx, cacheKey(k), data, c.TTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l.Warn("redis_cache_fill_failed", "error", err)
	}

	return out, nil
}

// Forget drops cached entries after a product changes.
func (c *CachedLookup) Forget(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = cacheKey(k)
	}
	return c.Redis.Del(ctx, redisKeys...).Err()
}

// ProductKeys lists every join key a product is cached under.
func ProductKeys(products []models.Product) []string {
	keys := make([]string, 0, 2*len(products))
	for _, p := range products {
		keys = append(keys, p.ID)
		if p.StripeProductID != nil && *p.StripeProductID != "" {
			keys = append(keys, *p.StripeProductID)
		}
	}
	return keys
}

func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
