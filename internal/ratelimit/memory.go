package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local sliding window store.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*window
	now     func() time.Time
}

type window struct {
	hits []time.Time
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*window), now: time.Now}
}

func (m *Memory) Allow(ctx context.Context, key string, limit int, span time.Duration) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := m.buckets[key]
	if w == nil {
		w = &window{}
		m.buckets[key] = w
	}
	w.prune(now.Add(-span))

	if len(w.hits) >= limit {
		resetAt := w.hits[0].Add(span)
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	w.hits = append(w.hits, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.hits),
		ResetAt:   w.hits[0].Add(span),
	}, nil
}

// prune drops hits at or before cutoff. Hits are appended in time order.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.hits); i++ {
		if w.hits[i].After(cutoff) {
			break
		}
	}
	w.hits = w.hits[i:]
}
