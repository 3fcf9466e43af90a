package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnion(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		key      KeyFunc
		expected []string
		added    int
	}{
		{
			name:     "empty existing takes incoming in order",
			existing: nil,
			incoming: []string{"netflix.com", "www.netflix.com"},
			key:      Fold,
			expected: []string{"netflix.com", "www.netflix.com"},
			added:    2,
		},
		{
			name:     "case-insensitive duplicate is not added",
			existing: []string{"netflix.com"},
			incoming: []string{"NETFLIX.com"},
			key:      Fold,
			expected: []string{"netflix.com"},
			added:    0,
		},
		{
			name:     "exact comparison keeps distinct case",
			existing: []string{"a"},
			incoming: []string{"A"},
			key:      Exact,
			expected: []string{"a", "A"},
			added:    1,
		},
		{
			name:     "new values append after existing",
			existing: []string{"1.2.3.4", "5.6.7.8"},
			incoming: []string{"5.6.7.8", "9.9.9.9", "9.9.9.9"},
			key:      Exact,
			expected: []string{"1.2.3.4", "5.6.7.8", "9.9.9.9"},
			added:    1,
		},
		{
			name:     "existing duplicates survive untouched",
			existing: []string{"x", "x"},
			incoming: []string{"x"},
			key:      Exact,
			expected: []string{"x", "x"},
			added:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, added := Union(tt.existing, tt.incoming, tt.key)
			assert.Equal(t, tt.expected, result)
			assert.Equal(t, tt.added, added)
		})
	}
}

func TestSet(t *testing.T) {
	s := NewSet(Fold, "Example.com")

	assert.True(t, s.Contains("example.COM"))
	assert.False(t, s.Add("EXAMPLE.com"))
	assert.True(t, s.Add("www.example.com"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"Example.com", "www.example.com"}, s.Values())

	values := s.Values()
	values[0] = "mutated"
	assert.Equal(t, "Example.com", s.Values()[0], "Values returns a copy")
}

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "trims, drops empties, keeps first-seen order",
			input:    []string{"  8.8.8.8:53 ", "1.1.1.1:53", "8.8.8.8:53", "", "  "},
			expected: []string{"8.8.8.8:53", "1.1.1.1:53"},
		},
		{
			name:     "preserves case",
			input:    []string{"Streaming", "streaming"},
			expected: []string{"Streaming", "streaming"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Nil(t, DedupeAndTrimLower(nil))
	assert.Equal(t, []string{"foo", "bar"}, DedupeAndTrimLower([]string{"  FOO ", "bar", "Foo", "BAR"}))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"streaming", "social"}, SplitList("streaming, social,,streaming"))
}
