// Package events publishes ingestion and build outcomes for downstream
// consumers such as the chat front-end.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeIngestCreated  Type = "ingest_created"
	TypeIngestUpdated  Type = "ingest_updated"
	TypeIngestNoop     Type = "ingest_noop"
	TypeIngestFailed   Type = "ingest_failed"
	TypeBuildSucceeded Type = "build_succeeded"
	TypeBuildFailed    Type = "build_failed"
)

// Event is transport-agnostic so sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Category  string    `json:"category,omitempty"`
	Status    string    `json:"status,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	// Detail carries the error kind for failures or the build URL.
	Detail string `json:"detail,omitempty"`
}

// New stamps an event of type t with a fresh ID and the current UTC time.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC()}
}

// ForStatus maps an ingest outcome to its event type.
func ForStatus(status string) Type {
	switch status {
	case "created":
		return TypeIngestCreated
	case "updated":
		return TypeIngestUpdated
	case "noop":
		return TypeIngestNoop
	default:
		return TypeIngestFailed
	}
}
