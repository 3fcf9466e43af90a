package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedReasoner struct {
	answer string
	err    error
	prompt string
}

func (r *cannedReasoner) Generate(_ context.Context, prompt string, _ int) (string, error) {
	r.prompt = prompt
	return r.answer, r.err
}

func TestReasonerGuesser(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    string
		wantErr bool
	}{
		{name: "bare domain", answer: "netflix.com", want: "netflix.com"},
		{name: "strips scheme www and slash", answer: "  https://www.Netflix.com/ ", want: "netflix.com"},
		{name: "quoted", answer: "`spotify.com`", want: "spotify.com"},
		{name: "unknown", answer: "UNKNOWN", wantErr: true},
		{name: "sentence", answer: "the domain is netflix.com", wantErr: true},
		{name: "empty", answer: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &cannedReasoner{answer: tt.answer}
			got, err := NewReasonerGuesser(r).Guess(context.Background(), "netflix")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, r.prompt, "'netflix'")
		})
	}
}

func TestReasonerGuesserPropagatesError(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewReasonerGuesser(&cannedReasoner{err: boom}).Guess(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestTLDGuesser(t *testing.T) {
	g := NewTLDGuesser(".COM")

	got, err := g.Guess(context.Background(), "You Tube")
	require.NoError(t, err)
	assert.Equal(t, "youtube.com", got)

	_, err = g.Guess(context.Background(), "foo.bar")
	assert.Error(t, err)

	_, err = g.Guess(context.Background(), "c++")
	assert.Error(t, err)

	_, err = NewTLDGuesser("").Guess(context.Background(), "netflix")
	assert.Error(t, err)
}

func TestIsValidDomain(t *testing.T) {
	valid := []string{"netflix.com", "www.netflix.com", "a-b.example.org", "xn--e1afmkfd.xn--p1ai", "1password.com"}
	invalid := []string{"", "netflix", "-bad.com", "bad-.com", "a..b", "under_score.com", "example.123", "1.2.3.4"}

	for _, d := range valid {
		assert.True(t, isValidDomain(d), d)
	}
	for _, d := range invalid {
		assert.False(t, isValidDomain(d), d)
	}
}
