// Package lock serializes work on one category. Keyed covers a single
// process; RedisLease extends the guarantee across replicas. Chain combines
// them so the local mutex is taken first and Redis only sees one contender
// per process.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Locker acquires an exclusive lock on key, waiting until ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Keyed is an in-process mutex per key. Idle keys are dropped.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

func (k *Keyed) Acquire(ctx context.Context, key string) (Release, error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, s)
		return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.unref(key, s)
		})
	}, nil
}

func (k *Keyed) unref(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// size reports the number of tracked keys.
func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// Chain acquires each locker in order and releases in reverse.
type Chain []Locker

func (c Chain) Acquire(ctx context.Context, key string) (Release, error) {
	held := make([]Release, 0, len(c))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, l := range c {
		if l == nil {
			continue
		}
		rel, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, rel)
	}
	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
