package events

import (
	"context"
	"log/slog"
	"time"
)

// Buffered decouples callers from a slow sink. Publish only enqueues; Run
// drains the queue into the wrapped sink in batches.
type Buffered struct {
	next      Sink
	buf       *RingBuffer
	batchSize int
	interval  time.Duration
	notify    chan struct{}
	logger    *slog.Logger
}

type BufferedOption func(*Buffered)

func WithBatchSize(n int) BufferedOption {
	return func(b *Buffered) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithFlushInterval sets how often Run retries after a failed batch.
func WithFlushInterval(d time.Duration) BufferedOption {
	return func(b *Buffered) {
		if d > 0 {
			b.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) BufferedOption {
	return func(b *Buffered) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBuffered(next Sink, capacity int, opts ...BufferedOption) *Buffered {
	b := &Buffered{
		next:      next,
		buf:       NewRingBuffer(capacity),
		batchSize: 100,
		interval:  time.Second,
		notify:    make(chan struct{}, 1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Buffered) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		if b.buf.Enqueue(e) {
			b.logger.WarnContext(ctx, "event buffer full, dropped oldest event")
		}
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports how many events wait for delivery.
func (b *Buffered) Pending() int {
	return b.buf.Len()
}

// Run delivers events until ctx is done, then makes one bounded attempt to
// flush what is left.
func (b *Buffered) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			b.drain(flushCtx)
			cancel()
			return ctx.Err()
		case <-b.notify:
			b.drain(ctx)
		case <-ticker.C:
			b.drain(ctx)
		}
	}
}

func (b *Buffered) drain(ctx context.Context) {
	for {
		batch := b.buf.DequeueBatch(b.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := b.next.Publish(ctx, batch...); err != nil {
			b.buf.Requeue(batch)
			b.logger.WarnContext(ctx, "event delivery failed, will retry",
				"events", len(batch),
				"error", err,
			)
			return
		}
	}
}
