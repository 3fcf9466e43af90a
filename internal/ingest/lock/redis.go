package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"iplist/pkg/platform/backoff"
	"iplist/pkg/platform/sentinel"
)

const defaultLeasePrefix = "iplist:lock:"

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisClient is the subset of go-redis the lease needs.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLease is a SET NX PX lease. The TTL bounds how long a crashed holder
// blocks others. While held the lease is renewed every renew interval, so a
// slow fetch-merge-write cycle keeps it.
type RedisLease struct {
	client   RedisClient
	ttl      time.Duration
	renew    time.Duration
	prefix   string
	pollMin  time.Duration
	pollMax  time.Duration
	logger   *slog.Logger
	newToken func() string
}

type LeaseOption func(*RedisLease)

func WithKeyPrefix(prefix string) LeaseOption {
	return func(l *RedisLease) {
		l.prefix = prefix
	}
}

// WithPollInterval bounds the wait between acquisition attempts.
func WithPollInterval(min, max time.Duration) LeaseOption {
	return func(l *RedisLease) {
		if min > 0 && max >= min {
			l.pollMin, l.pollMax = min, max
		}
	}
}

// WithRenewInterval sets how often a held lease is extended. Zero disables
// renewal. Defaults to a third of the TTL.
func WithRenewInterval(d time.Duration) LeaseOption {
	return func(l *RedisLease) {
		if d >= 0 {
			l.renew = d
		}
	}
}

func WithLeaseLogger(logger *slog.Logger) LeaseOption {
	return func(l *RedisLease) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewRedisLease(client RedisClient, ttl time.Duration, opts ...LeaseOption) *RedisLease {
	l := &RedisLease{
		client:   client,
		ttl:      ttl,
		renew:    ttl / 3,
		prefix:   defaultLeasePrefix,
		pollMin:  50 * time.Millisecond,
		pollMax:  time.Second,
		logger:   slog.Default(),
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAcquire makes a single attempt. It returns sentinel.ErrLocked when the
// lease is held elsewhere.
func (l *RedisLease) TryAcquire(ctx context.Context, key string) (Release, error) {
	token := l.newToken()
	redisKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire %s: %w", key, sentinel.ErrLocked)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	if l.renew > 0 {
		go l.keepAlive(ctx, key, redisKey, token, stop, done)
	} else {
		close(done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// release must run even when the caller's context is gone
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.WarnContext(ctx, "failed to release category lease",
					"key", key,
					"error", err,
				)
			}
		})
	}, nil
}

// keepAlive renews the lease until stop is closed or the lease is lost.
func (l *RedisLease) keepAlive(ctx context.Context, key, redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()

	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		rctx, cancel := context.WithTimeout(ctx, l.renew)
		renewed, err := renewScript.Run(rctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.logger.WarnContext(ctx, "failed to renew category lease",
				"key", key,
				"error", err,
			)
			continue
		}
		if renewed == 0 {
			l.logger.ErrorContext(ctx, "category lease lost before release", "key", key)
			return
		}
	}
}

// Acquire polls with jittered backoff until the lease is free or ctx is done.
func (l *RedisLease) Acquire(ctx context.Context, key string) (Release, error) {
	for attempt := 1; ; attempt++ {
		rel, err := l.TryAcquire(ctx, key)
		if err == nil {
			return rel, nil
		}
		if !errors.Is(err, sentinel.ErrLocked) {
			return nil, err
		}
		if err := backoff.Sleep(ctx, backoff.Delay(l.pollMin, l.pollMax, attempt)); err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
	}
}
