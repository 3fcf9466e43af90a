package service

import (
	"context"

	"iplist/internal/events"
	"iplist/internal/ingest/journal"
	"iplist/internal/normalize"
	"iplist/internal/publisher"
	"iplist/internal/resolver"
)

// Normalizer maps operator text to a canonical domain.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) (normalize.Result, error)
}

// Resolver looks up a domain's addresses. Failures degrade the result rather
// than returning an error; only cancellation is an error.
type Resolver interface {
	Lookup(ctx context.Context, domain string) (resolver.Result, error)
}

// Classifier picks a category, or validates one the operator supplied.
type Classifier interface {
	Classify(ctx context.Context, domain string, hint *resolver.Result) (string, error)
	Validate(name string) (string, error)
	Categories() []string
}

// Publisher reads and conditionally writes category documents.
type Publisher interface {
	Fetch(ctx context.Context, category string) (publisher.Snapshot, error)
	Write(ctx context.Context, category string, content []byte, expectedRevision, message string) (publisher.Commit, error)
}

// BuildTracker is told about every published commit.
type BuildTracker interface {
	Track(ctx context.Context, commit, domain, category string)
}

// Journal records terminal outcomes.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Totals(ctx context.Context) (map[string]int, error)
}

// EventSink receives one event per terminal outcome.
type EventSink interface {
	Publish(ctx context.Context, evs ...events.Event) error
}
