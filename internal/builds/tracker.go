// Package builds follows CI runs of the dataset repository and tells the
// operator when a published change has actually been built.
package builds

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"iplist/internal/events"
	"iplist/internal/platform/metrics"
	"iplist/pkg/requestcontext"
)

// Conclusions reported by workflow_run events that the tracker acts on.
const (
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
)

// Pending is a published commit whose build has not reported yet.
type Pending struct {
	Commit    string
	Domain    string
	Category  string
	RequestID string
	CreatedAt time.Time
}

// Tracker keeps pending builds in memory. Pending builds do not survive a
// restart; the operator simply gets no build notification for them.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]Pending

	sink    events.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Tracker)

func WithEvents(sink events.Sink) Option {
	return func(t *Tracker) {
		t.sink = sink
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		pending: make(map[string]Pending),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records a pending build for commit.
func (t *Tracker) Track(ctx context.Context, commit, domain, category string) {
	if commit == "" {
		return
	}
	p := Pending{
		Commit:    commit,
		Domain:    domain,
		Category:  category,
		RequestID: requestcontext.RequestID(ctx),
		CreatedAt: t.now().UTC(),
	}
	t.mu.Lock()
	t.pending[commit] = p
	t.mu.Unlock()

	t.logger.DebugContext(ctx, "build pending",
		"commit", commit,
		"domain", domain,
		"category", category,
	)
}

// Resolve applies a completed run's conclusion and returns the builds it
// settled, oldest first. A green build covers every earlier commit, so success
// settles everything; failure settles only headSHA. Any other conclusion keeps
// builds pending until the next run.
func (t *Tracker) Resolve(ctx context.Context, conclusion, headSHA string) []Pending {
	var settled []Pending

	t.mu.Lock()
	switch conclusion {
	case ConclusionSuccess:
		for sha, p := range t.pending {
			settled = append(settled, p)
			delete(t.pending, sha)
		}
	case ConclusionFailure:
		if p, ok := t.pending[headSHA]; ok {
			settled = append(settled, p)
			delete(t.pending, headSHA)
		}
	}
	t.mu.Unlock()

	if len(settled) == 0 {
		t.logger.InfoContext(ctx, "build run settled nothing",
			"conclusion", conclusion,
			"head_sha", headSHA,
		)
		return nil
	}
	sort.Slice(settled, func(i, j int) bool {
		return settled[i].CreatedAt.Before(settled[j].CreatedAt)
	})

	typ := events.TypeBuildSucceeded
	if conclusion == ConclusionFailure {
		typ = events.TypeBuildFailed
	}
	evs := make([]events.Event, 0, len(settled))
	for _, p := range settled {
		ev := events.New(typ)
		ev.RequestID = p.RequestID
		ev.Domain = p.Domain
		ev.Category = p.Category
		ev.Commit = p.Commit
		ev.Status = conclusion
		evs = append(evs, ev)
		t.metrics.IncBuild(conclusion)
	}
	if t.sink != nil {
		if err := t.sink.Publish(ctx, evs...); err != nil {
			t.logger.WarnContext(ctx, "failed to publish build events",
				"conclusion", conclusion,
				"count", len(evs),
				"error", err,
			)
		}
	}

	t.logger.InfoContext(ctx, "builds settled",
		"conclusion", conclusion,
		"head_sha", headSHA,
		"count", len(settled),
	)
	return settled
}

// Pending lists builds still waiting for a run, oldest first.
func (t *Tracker) Pending() []Pending {
	t.mu.Lock()
	out := make([]Pending, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, p)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
