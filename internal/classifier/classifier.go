// Package classifier assigns a domain to one label of the enumerated category
// set by asking a reasoning service.
//
// Classification is advisory. An answer outside the set is rejected, never
// coerced, and the caller is expected to fall back to asking the operator.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"iplist/internal/reasoner"
	"iplist/internal/resolver"
	dErrors "iplist/pkg/domain-errors"
	"iplist/pkg/platform/backoff"
	"iplist/pkg/platform/circuit"
)

// Reasoner generates a short answer for a prompt.
type Reasoner interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ContextFetcher returns readable text about a domain, such as its homepage.
// Failures are not fatal; classification continues without the text.
type ContextFetcher interface {
	Fetch(ctx context.Context, domain string) (string, error)
}

// BreakerObserver is told when the breaker opens or closes.
type BreakerObserver interface {
	SetBreakerOpen(open bool)
}

type Classifier struct {
	reasoner   Reasoner
	categories *Categories
	breaker    *circuit.Breaker
	retryDelay time.Duration
	observer   BreakerObserver
	fetcher    ContextFetcher
	logger     *slog.Logger
}

type Option func(*Classifier)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Classifier) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithRetryDelay sets the base delay before the single transport retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Classifier) {
		c.retryDelay = d
	}
}

func WithBreakerObserver(o BreakerObserver) Option {
	return func(c *Classifier) {
		c.observer = o
	}
}

// WithContextFetcher adds page text to the prompt when available.
func WithContextFetcher(f ContextFetcher) Option {
	return func(c *Classifier) {
		c.fetcher = f
	}
}

func New(r Reasoner, categories *Categories, opts ...Option) (*Classifier, error) {
	if r == nil {
		return nil, fmt.Errorf("reasoner is required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category set is required")
	}
	c := &Classifier{
		reasoner:   r,
		categories: categories,
		breaker:    circuit.New("classifier", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(1), circuit.WithCooldown(30*time.Second)),
		retryDelay: 500 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Categories returns the current label set.
func (c *Classifier) Categories() []string {
	return c.categories.Names()
}

// Validate maps an operator-supplied category to its canonical spelling.
func (c *Classifier) Validate(name string) (string, error) {
	canonical, ok := c.categories.Lookup(name)
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidCategory, fmt.Sprintf("unknown category %q", name))
	}
	return canonical, nil
}

// Classify returns one label from the category set for domain. hint, when
// non-nil, adds the resolved addresses to the prompt, as does page text from
// the context fetcher.
func (c *Classifier) Classify(ctx context.Context, domain string, hint *resolver.Result) (string, error) {
	names := c.categories.Names()
	if len(names) == 0 {
		return "", dErrors.New(dErrors.CodeClassificationFailed, "no categories configured")
	}
	if !c.breaker.Allow() {
		return "", dErrors.New(dErrors.CodeClassificationFailed, "classifier temporarily unavailable")
	}

	prompt := buildPrompt(domain, names, hint, c.pageContext(ctx, domain))
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		c.recordFailure(ctx)
		return "", dErrors.Wrap(err, dErrors.CodeClassificationFailed, "classifier request failed")
	}
	c.recordSuccess(ctx)

	label := parseAnswer(raw)
	canonical, ok := c.categories.Lookup(label)
	if !ok {
		c.logger.WarnContext(ctx, "classifier returned unknown category",
			"domain", domain,
			"answer", raw,
		)
		return "", dErrors.New(dErrors.CodeClassificationFailed, fmt.Sprintf("classifier returned unknown category %q", label))
	}

	c.logger.InfoContext(ctx, "domain classified",
		"domain", domain,
		"category", canonical,
	)
	return canonical, nil
}

func (c *Classifier) pageContext(ctx context.Context, domain string) string {
	if c.fetcher == nil {
		return ""
	}
	text, err := c.fetcher.Fetch(ctx, domain)
	if err != nil {
		c.logger.WarnContext(ctx, "page context unavailable",
			"domain", domain,
			"error", err,
		)
		return ""
	}
	return text
}

// generate makes the call with exactly one retry for retryable failures.
func (c *Classifier) generate(ctx context.Context, prompt string) (string, error) {
	raw, err := c.reasoner.Generate(ctx, prompt, maxAnswerTokens)
	if err == nil || !reasoner.IsRetryable(err) || ctx.Err() != nil {
		return raw, err
	}

	c.logger.WarnContext(ctx, "classifier request failed, retrying once",
		"error", err,
		"category", reasoner.GetCategory(err),
	)
	if serr := backoff.Sleep(ctx, backoff.Delay(c.retryDelay, c.retryDelay, 1)); serr != nil {
		return "", err
	}
	return c.reasoner.Generate(ctx, prompt, maxAnswerTokens)
}

func (c *Classifier) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "classifier breaker opened")
		if c.observer != nil {
			c.observer.SetBreakerOpen(true)
		}
	}
}

func (c *Classifier) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "classifier breaker closed")
		if c.observer != nil {
			c.observer.SetBreakerOpen(false)
		}
	}
}
