package classifier

import (
	"strings"
	"sync"

	pstrings "iplist/pkg/platform/strings"
)

// Categories is the enumerated label set. Lookups are case-insensitive and
// return the set's own spelling. Safe for concurrent use; the set can be
// replaced when the dataset repository gains a category.
type Categories struct {
	mu     sync.RWMutex
	names  []string
	byFold map[string]string
}

// NewCategories builds a set, dropping blanks and case-insensitive duplicates.
func NewCategories(names []string) *Categories {
	c := &Categories{}
	c.Replace(names)
	return c
}

// Replace swaps the whole set.
func (c *Categories) Replace(names []string) {
	set := pstrings.NewSet(pstrings.Fold)
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set.Add(n)
		}
	}
	byFold := make(map[string]string, set.Len())
	for _, n := range set.Values() {
		byFold[strings.ToLower(n)] = n
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = set.Values()
	c.byFold = byFold
}

// Lookup returns the canonical spelling of name.
func (c *Categories) Lookup(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	canonical, ok := c.byFold[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Names returns the labels in configured order.
func (c *Categories) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.names...)
}

func (c *Categories) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
