package normalize

import (
	"context"
	"fmt"
	"strings"
)

// Guesser proposes a domain for a service name.
type Guesser interface {
	Name() string
	Guess(ctx context.Context, text string) (string, error)
}

// Reasoner generates a short answer for a prompt.
type Reasoner interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ReasonerGuesser asks the reasoning service for a service's primary domain.
type ReasonerGuesser struct {
	reasoner Reasoner
}

func NewReasonerGuesser(r Reasoner) *ReasonerGuesser {
	return &ReasonerGuesser{reasoner: r}
}

func (g *ReasonerGuesser) Name() string { return "reasoner" }

func (g *ReasonerGuesser) Guess(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"What is the primary domain of the service '%s'? "+
			"Return ONLY the domain, without http://, www. or any explanation. "+
			"If you are not sure or it is not a known service, return 'UNKNOWN'.",
		text,
	)
	answer, err := g.reasoner.Generate(ctx, prompt, 30)
	if err != nil {
		return "", err
	}

	domain := strings.ToLower(strings.TrimSpace(answer))
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimRight(domain, "/")
	domain = strings.Trim(domain, "`'\". ")

	if strings.Contains(domain, "unknown") || len(domain) > 100 || strings.ContainsAny(domain, " \t\n") || domain == "" {
		return "", fmt.Errorf("no domain known for %q", text)
	}
	return domain, nil
}

// TLDGuesser appends a default TLD to a single-word service name.
type TLDGuesser struct {
	tld string
}

func NewTLDGuesser(tld string) *TLDGuesser {
	return &TLDGuesser{tld: strings.Trim(strings.ToLower(tld), ". ")}
}

func (g *TLDGuesser) Name() string { return "default_tld" }

func (g *TLDGuesser) Guess(_ context.Context, text string) (string, error) {
	slug := strings.Join(strings.Fields(strings.ToLower(text)), "")
	if slug == "" || strings.Contains(slug, ".") || !validLabel(slug) || g.tld == "" {
		return "", fmt.Errorf("cannot derive a domain from %q", text)
	}
	return slug + "." + g.tld, nil
}
