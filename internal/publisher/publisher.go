// Package publisher stores category documents in a version-controlled
// repository. Writes are conditional on the revision observed by the
// preceding Fetch; a lost race surfaces as sentinel.ErrConflict.
package publisher

import "context"

// Snapshot is the stored state of one category document.
type Snapshot struct {
	Category string
	Content  []byte
	// Revision identifies the stored state a write must be conditioned on.
	// Empty when the document does not exist.
	Revision string
	Exists   bool
}

// Commit identifies a successful write.
type Commit struct {
	SHA string
	URL string
}

// Publisher is implemented by GitHub and Memory.
type Publisher interface {
	Fetch(ctx context.Context, category string) (Snapshot, error)
	Write(ctx context.Context, category string, content []byte, expectedRevision, message string) (Commit, error)
	Categories(ctx context.Context) ([]string, error)
}
