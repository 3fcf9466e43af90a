package publisher

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"iplist/pkg/platform/sentinel"
)

// Memory keeps documents in process. It backs dry-run mode and tests, and
// enforces the same revision check as GitHub.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]memoryDoc
	revision int
}

type memoryDoc struct {
	content  []byte
	revision string
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]memoryDoc)}
}

// Seed stores content for category without a commit and returns its revision.
func (m *Memory) Seed(category string, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store(category, content)
}

func (m *Memory) store(category string, content []byte) string {
	m.revision++
	rev := "r" + strconv.Itoa(m.revision)
	m.docs[category] = memoryDoc{content: append([]byte(nil), content...), revision: rev}
	return rev
}

func (m *Memory) Fetch(ctx context.Context, category string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[category]
	if !ok {
		return Snapshot{Category: category}, nil
	}
	return Snapshot{
		Category: category,
		Content:  append([]byte(nil), doc.content...),
		Revision: doc.revision,
		Exists:   true,
	}, nil
}

func (m *Memory) Write(ctx context.Context, category string, content []byte, expectedRevision, _ string) (Commit, error) {
	if err := ctx.Err(); err != nil {
		return Commit{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[category].revision != expectedRevision {
		return Commit{}, fmt.Errorf("write %s: %w", category, sentinel.ErrConflict)
	}
	rev := m.store(category, content)
	return Commit{SHA: rev}, nil
}

func (m *Memory) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Content returns the stored bytes for category, nil when absent.
func (m *Memory) Content(category string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[category]
	if !ok {
		return nil
	}
	return append([]byte(nil), doc.content...)
}
