// Package journal records the terminal outcome of every ingestion.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status values mirror the ingest outcome, plus "error" for failures.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusNoop    = "noop"
	StatusError   = "error"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Entry is one ingestion outcome.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	Input     string    `json:"input"`
	Domain    string    `json:"domain,omitempty"`
	Category  string    `json:"category,omitempty"`
	Status    string    `json:"status"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	IP4       []string  `json:"ip4"`
	IP6       []string  `json:"ip6"`
	Resolver  string    `json:"resolver,omitempty"`
	Degraded  bool      `json:"degraded"`
	Commit    string    `json:"commit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal stores entries and reads back the most recent ones.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Totals counts ingestions that changed a document, per category.
	Totals(ctx context.Context) (map[string]int, error)
}

// ClampLimit maps a requested page size into [1, MaxLimit], with 0 or less
// meaning DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func changed(status string) bool {
	return status == StatusCreated || status == StatusUpdated
}

func withDefaults(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.IP4 == nil {
		e.IP4 = []string{}
	}
	if e.IP6 == nil {
		e.IP6 = []string{}
	}
	return e
}
