package normalize

//go:generate mockgen -source=normalize.go -destination=mocks/mocks.go -package=mocks Prober

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"iplist/internal/normalize/mocks"
	"iplist/internal/resolver"
	dErrors "iplist/pkg/domain-errors"
)

// =============================================================================
// Normalizer Test Suite
// =============================================================================

type NormalizerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	prober *mocks.MockProber
}

func TestNormalizerSuite(t *testing.T) {
	suite.Run(t, new(NormalizerSuite))
}

func (s *NormalizerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.prober = mocks.NewMockProber(s.ctrl)
}

func (s *NormalizerSuite) newNormalizer(opts ...Option) *Normalizer {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	n, err := New(s.prober, opts...)
	s.Require().NoError(err)
	return n
}

type stubGuesser struct {
	name  string
	guess string
	err   error
	calls int
}

func (g *stubGuesser) Name() string { return g.name }

func (g *stubGuesser) Guess(context.Context, string) (string, error) {
	g.calls++
	return g.guess, g.err
}

func resolved(ip string) resolver.Result {
	return resolver.Result{IP4: []string{ip}, IP6: []string{}}
}

// =============================================================================
// Literal domains
// =============================================================================

func (s *NormalizerSuite) TestLiteralDomains() {
	n := s.newNormalizer()
	ctx := context.Background()

	tests := []struct {
		input   string
		domain  string
		aliases []string
	}{
		{input: "Netflix.com", domain: "netflix.com", aliases: []string{"www.netflix.com"}},
		{input: "www.netflix.com", domain: "www.netflix.com", aliases: []string{}},
		{input: "https://www.YouTube.com/watch?v=1", domain: "www.youtube.com", aliases: []string{}},
		{input: "api.example.co.uk:8443", domain: "api.example.co.uk", aliases: []string{}},
		{input: "example.co.uk.", domain: "example.co.uk", aliases: []string{"www.example.co.uk"}},
		{input: "пример.рф", domain: "xn--e1afmkfd.xn--p1ai", aliases: []string{"www.xn--e1afmkfd.xn--p1ai"}},
	}

	for _, tt := range tests {
		s.Run(tt.input, func() {
			res, err := n.Normalize(ctx, tt.input)
			s.Require().NoError(err)
			s.Equal(tt.domain, res.Domain)
			s.Equal(tt.aliases, res.Aliases)
			s.False(res.Guessed)
			s.Nil(res.Probe)
		})
	}
}

func (s *NormalizerSuite) TestAliasesDisabled() {
	n := s.newNormalizer(WithWWWAliases(false))
	res, err := n.Normalize(context.Background(), "netflix.com")
	s.Require().NoError(err)
	s.Empty(res.Aliases)
}

func (s *NormalizerSuite) TestRejectsAddressesAndEmptyInput() {
	n := s.newNormalizer()
	for _, input := range []string{"", "   ", "1.2.3.4", "[2001:db8::1]:443", "2001:db8::1"} {
		_, err := n.Normalize(context.Background(), input)
		s.True(dErrors.HasCode(err, dErrors.CodeAmbiguousInput), "input %q", input)
	}
}

// =============================================================================
// Service names
// =============================================================================

func (s *NormalizerSuite) TestGuessValidatedByProbe() {
	llm := &stubGuesser{name: "reasoner", guess: "netflix.com"}
	tld := &stubGuesser{name: "default_tld", guess: "netflix.com"}
	n := s.newNormalizer(WithGuessers(llm, tld))

	s.prober.EXPECT().Lookup(gomock.Any(), "netflix.com").Return(resolved("1.2.3.4"), nil)

	res, err := n.Normalize(context.Background(), "netflix")
	s.Require().NoError(err)
	s.Equal("netflix.com", res.Domain)
	s.True(res.Guessed)
	s.Equal("reasoner", res.Source)
	s.Require().NotNil(res.Probe)
	s.Equal([]string{"1.2.3.4"}, res.Probe.IP4)
	s.Equal(0, tld.calls)
}

func (s *NormalizerSuite) TestFallsThroughFailingGuessers() {
	llm := &stubGuesser{name: "reasoner", err: errors.New("no domain known")}
	bogus := &stubGuesser{name: "bogus", guess: "not a domain"}
	unresolved := &stubGuesser{name: "dead", guess: "dead-service.example"}
	tld := NewTLDGuesser("com")
	n := s.newNormalizer(WithGuessers(llm, bogus, unresolved, tld))

	gomock.InOrder(
		s.prober.EXPECT().Lookup(gomock.Any(), "dead-service.example").Return(resolver.Result{Degraded: true, Issue: resolver.IssueNXDomain}, nil),
		s.prober.EXPECT().Lookup(gomock.Any(), "hulu.com").Return(resolved("5.6.7.8"), nil),
	)

	res, err := n.Normalize(context.Background(), "Hulu")
	s.Require().NoError(err)
	s.Equal("hulu.com", res.Domain)
	s.Equal("default_tld", res.Source)
}

func (s *NormalizerSuite) TestNoGuessResolvesIsAmbiguous() {
	n := s.newNormalizer(WithGuessers(NewTLDGuesser("com")))
	s.prober.EXPECT().Lookup(gomock.Any(), "qwertyzxcv.com").Return(resolver.Result{Degraded: true}, nil)

	_, err := n.Normalize(context.Background(), "qwertyzxcv")
	s.True(dErrors.HasCode(err, dErrors.CodeAmbiguousInput))
}

func (s *NormalizerSuite) TestNoGuessersIsAmbiguous() {
	n := s.newNormalizer()
	_, err := n.Normalize(context.Background(), "netflix")
	s.True(dErrors.HasCode(err, dErrors.CodeAmbiguousInput))
}

func (s *NormalizerSuite) TestCancelledDuringProbe() {
	n := s.newNormalizer(WithGuessers(NewTLDGuesser("com")))
	ctx, cancel := context.WithCancel(context.Background())

	s.prober.EXPECT().Lookup(gomock.Any(), "netflix.com").DoAndReturn(func(context.Context, string) (resolver.Result, error) {
		cancel()
		return resolver.Result{}, context.Canceled
	})

	_, err := n.Normalize(ctx, "netflix")
	s.ErrorIs(err, context.Canceled)
}

func (s *NormalizerSuite) TestNewRequiresProber() {
	_, err := New(nil)
	s.ErrorContains(err, "prober is required")
}
