//go:build integration

package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"iplist/internal/ingest/lock"
	"iplist/pkg/platform/sentinel"
	"iplist/pkg/testutil/containers"
)

type RedisLeaseSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLeaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLeaseSuite))
}

func (s *RedisLeaseSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLeaseSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLeaseSuite) TestExclusive() {
	ctx := context.Background()
	a := lock.NewRedisLease(s.redis.Client, 5*time.Second)
	b := lock.NewRedisLease(s.redis.Client, 5*time.Second)

	rel, err := a.TryAcquire(ctx, "streaming")
	s.Require().NoError(err)

	_, err = b.TryAcquire(ctx, "streaming")
	s.ErrorIs(err, sentinel.ErrLocked)

	rel()
	rel2, err := b.TryAcquire(ctx, "streaming")
	s.Require().NoError(err)
	rel2()
}

func (s *RedisLeaseSuite) TestExpiredLeaseIsNotReleasedByOldHolder() {
	ctx := context.Background()
	short := lock.NewRedisLease(s.redis.Client, 100*time.Millisecond, lock.WithRenewInterval(0))
	long := lock.NewRedisLease(s.redis.Client, 5*time.Second)

	stale, err := short.TryAcquire(ctx, "ai")
	s.Require().NoError(err)
	time.Sleep(200 * time.Millisecond)

	fresh, err := long.TryAcquire(ctx, "ai")
	s.Require().NoError(err)
	defer fresh()

	// the old holder's token no longer matches
	stale()
	_, err = short.TryAcquire(ctx, "ai")
	s.ErrorIs(err, sentinel.ErrLocked)
}

func (s *RedisLeaseSuite) TestHeldLeaseOutlivesTTL() {
	ctx := context.Background()
	holder := lock.NewRedisLease(s.redis.Client, 300*time.Millisecond, lock.WithRenewInterval(50*time.Millisecond))
	other := lock.NewRedisLease(s.redis.Client, 5*time.Second)

	rel, err := holder.TryAcquire(ctx, "social")
	s.Require().NoError(err)

	time.Sleep(time.Second)
	_, err = other.TryAcquire(ctx, "social")
	s.ErrorIs(err, sentinel.ErrLocked, "renewal must keep the lease past its ttl")

	rel()
	rel2, err := other.TryAcquire(ctx, "social")
	s.Require().NoError(err)
	rel2()
}

func (s *RedisLeaseSuite) TestRenewalStopsOnRelease() {
	ctx := context.Background()
	holder := lock.NewRedisLease(s.redis.Client, 200*time.Millisecond, lock.WithRenewInterval(20*time.Millisecond))

	rel, err := holder.TryAcquire(ctx, "music")
	s.Require().NoError(err)
	rel()

	time.Sleep(100 * time.Millisecond)
	exists, err := s.redis.Client.Exists(ctx, "iplist:lock:music").Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func (s *RedisLeaseSuite) TestAcquireWaitsForRelease() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	replicas := []lock.Locker{
		lock.Chain{lock.NewKeyed(), lock.NewRedisLease(s.redis.Client, 5*time.Second, lock.WithPollInterval(5*time.Millisecond, 20*time.Millisecond))},
		lock.Chain{lock.NewKeyed(), lock.NewRedisLease(s.redis.Client, 5*time.Second, lock.WithPollInterval(5*time.Millisecond, 20*time.Millisecond))},
	}

	var inside, overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(l lock.Locker) {
			defer wg.Done()
			rel, err := l.Acquire(ctx, "news")
			if err != nil {
				s.Fail("acquire", err.Error())
				return
			}
			if inside.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			rel()
		}(replicas[i%2])
	}
	wg.Wait()

	s.Zero(overlaps.Load())
}

func (s *RedisLeaseSuite) TestAcquireHonoursContext() {
	held := lock.NewRedisLease(s.redis.Client, 5*time.Second)
	rel, err := held.TryAcquire(context.Background(), "games")
	s.Require().NoError(err)
	defer rel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = lock.NewRedisLease(s.redis.Client, 5*time.Second).Acquire(ctx, "games")
	s.ErrorIs(err, context.DeadlineExceeded)
}
