package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "iplist:dns:"

// RedisCache keeps answered lookups in Redis for the dataset's cache-validity
// window, so repeated ingestions of one domain skip the resolver walk.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache caches results for ttl.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, domain string) (Result, bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+domain).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("get cached lookup: %w", err)
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, false, fmt.Errorf("decode cached lookup: %w", err)
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, domain string, res Result) error {
	res.Attempts = nil
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode lookup: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+domain, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache lookup: %w", err)
	}
	return nil
}
