// Package normalize turns free-form operator input into a canonical domain.
//
// Input that already is a domain is lower-cased and returned without any
// network call. Anything else is treated as a service name: each guesser
// proposes a domain in turn and the first proposal that resolves to at least
// one address is accepted.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"iplist/internal/resolver"
	dErrors "iplist/pkg/domain-errors"
)

// Prober validates a guessed domain by resolving it.
type Prober interface {
	Lookup(ctx context.Context, domain string) (resolver.Result, error)
}

// Result is a normalized domain.
type Result struct {
	Domain  string
	Aliases []string
	// Guessed is true when Domain came from a guesser rather than the input.
	Guessed bool
	// Source names the guesser that produced Domain.
	Source string
	// Probe is the lookup that validated a guess, nil for literal domains.
	Probe *resolver.Result
}

type Normalizer struct {
	prober     Prober
	guessers   []Guesser
	wwwAliases bool
	logger     *slog.Logger
}

type Option func(*Normalizer)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithGuessers sets the ordered guesser chain.
func WithGuessers(guessers ...Guesser) Option {
	return func(n *Normalizer) {
		n.guessers = guessers
	}
}

// WithWWWAliases controls whether a registrable domain gets its www. alias.
func WithWWWAliases(enabled bool) Option {
	return func(n *Normalizer) {
		n.wwwAliases = enabled
	}
}

func New(prober Prober, opts ...Option) (*Normalizer, error) {
	if prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	n := &Normalizer{
		prober:     prober,
		wwwAliases: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize maps raw to a canonical domain or fails with ambiguous_input.
func (n *Normalizer) Normalize(ctx context.Context, raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{}, dErrors.New(dErrors.CodeAmbiguousInput, "input is empty")
	}

	host := cleanHost(text)
	if isIPLiteral(host) {
		return Result{}, dErrors.New(dErrors.CodeAmbiguousInput, fmt.Sprintf("%q is an address, not a domain", text))
	}
	if isValidDomain(host) {
		return n.result(host, false, "", nil), nil
	}

	for _, g := range n.guessers {
		guess, err := g.Guess(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			n.logger.InfoContext(ctx, "guesser produced no domain",
				"guesser", g.Name(),
				"input", text,
				"error", err,
			)
			continue
		}

		candidate := cleanHost(guess)
		if !isValidDomain(candidate) {
			n.logger.InfoContext(ctx, "guessed domain is not valid",
				"guesser", g.Name(),
				"input", text,
				"guess", guess,
			)
			continue
		}

		probe, err := n.prober.Lookup(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			continue
		}
		if probe.Empty() {
			n.logger.InfoContext(ctx, "guessed domain does not resolve",
				"guesser", g.Name(),
				"guess", candidate,
				"issue", probe.Issue,
			)
			continue
		}

		n.logger.InfoContext(ctx, "service name resolved to domain",
			"input", text,
			"domain", candidate,
			"guesser", g.Name(),
		)
		return n.result(candidate, true, g.Name(), &probe), nil
	}

	return Result{}, dErrors.New(dErrors.CodeAmbiguousInput, fmt.Sprintf("could not derive a domain from %q", text))
}

func (n *Normalizer) result(domain string, guessed bool, source string, probe *resolver.Result) Result {
	res := Result{Domain: domain, Aliases: []string{}, Guessed: guessed, Source: source, Probe: probe}
	if n.wwwAliases {
		if alias := wwwAlias(domain); alias != "" {
			res.Aliases = append(res.Aliases, alias)
		}
	}
	return res
}
