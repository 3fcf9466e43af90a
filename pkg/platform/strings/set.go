// Package strings provides ordered string-set helpers used for dataset lists,
// CSV configuration values and domain aliases.
package strings

import (
	"strings"
)

// KeyFunc maps a value to its identity for duplicate detection.
type KeyFunc func(string) string

// Exact compares values as-is.
func Exact(s string) string { return s }

// Fold compares values case-insensitively.
func Fold(s string) string { return strings.ToLower(s) }

// Set is an insertion-ordered set of strings. The zero value is not usable;
// construct with NewSet.
type Set struct {
	key   KeyFunc
	seen  map[string]struct{}
	items []string
}

// NewSet returns a set seeded with values, using key for identity.
// Seed values are kept verbatim, duplicates among them included, because
// existing dataset lists must survive a merge untouched.
func NewSet(key KeyFunc, values ...string) *Set {
	if key == nil {
		key = Exact
	}
	s := &Set{
		key:   key,
		seen:  make(map[string]struct{}, len(values)),
		items: make([]string, 0, len(values)),
	}
	for _, v := range values {
		s.seen[key(v)] = struct{}{}
		s.items = append(s.items, v)
	}
	return s
}

// Add appends v unless an equal value is present. Reports whether v was added.
func (s *Set) Add(v string) bool {
	k := s.key(v)
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// AddAll adds each value in order and returns how many were new.
func (s *Set) AddAll(values ...string) int {
	added := 0
	for _, v := range values {
		if s.Add(v) {
			added++
		}
	}
	return added
}

func (s *Set) Contains(v string) bool {
	_, ok := s.seen[s.key(v)]
	return ok
}

func (s *Set) Len() int { return len(s.items) }

// Values returns the members in insertion order. Never nil.
func (s *Set) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Union appends the members of incoming missing from existing, preserving the
// order of both. It returns the merged list and the number of values added.
func Union(existing, incoming []string, key KeyFunc) ([]string, int) {
	set := NewSet(key, existing...)
	added := set.AddAll(incoming...)
	return set.Values(), added
}

// DedupeAndTrim trims each element, drops empties and duplicates, and keeps
// first-seen order.
//
//	DedupeAndTrim([]string{"  8.8.8.8:53 ", "1.1.1.1:53", "8.8.8.8:53", ""})
//	// []string{"8.8.8.8:53", "1.1.1.1:53"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(v string) string { return strings.TrimSpace(v) })
}

// DedupeAndTrimLower is DedupeAndTrim with lower-casing, for case-insensitive lists.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string { return strings.ToLower(strings.TrimSpace(v)) })
}

func dedupe(values []string, clean func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	set := NewSet(Exact)
	for _, v := range values {
		if c := clean(v); c != "" {
			set.Add(c)
		}
	}
	return set.Values()
}

// SplitList parses a comma-separated list with DedupeAndTrim.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}
