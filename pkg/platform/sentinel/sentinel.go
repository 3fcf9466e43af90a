package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Adapters (publisher, resolver,
// journal, lock) return these, optionally wrapped, and services translate them
// into domain errors:
//   - ErrNotFound: the stored object does not exist
//   - ErrConflict: a conditional write lost against a newer revision
//   - ErrUnavailable: the remote side is temporarily unreachable or throttled
//   - ErrLocked: a lease is already held by someone else
//
// Validation failures never use these; see pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrLocked      = errors.New("locked")
)
