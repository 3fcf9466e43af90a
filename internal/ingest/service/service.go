// Package service orchestrates one ingestion: normalize the input, resolve
// and classify the domain concurrently, then merge it into the category
// document and publish the result under a per-category lock.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"iplist/internal/dataset"
	"iplist/internal/ingest/journal"
	"iplist/internal/ingest/lock"
	"iplist/internal/normalize"
	"iplist/internal/platform/metrics"
	"iplist/internal/resolver"
	dErrors "iplist/pkg/domain-errors"
	"iplist/pkg/platform/backoff"
	"iplist/pkg/platform/sentinel"
	"iplist/pkg/requestcontext"
)

const (
	defaultMaxAttempts    = 3
	defaultPublishTimeout = 15 * time.Second
	conflictDelayCap      = time.Second
	tracerName            = "iplist/internal/ingest/service"
)

// Request is one ingest call. Category is optional; when set it overrides
// classification.
type Request struct {
	Text     string
	Category string
}

// Result is a successful ingestion.
type Result struct {
	Status    dataset.Outcome
	Category  string
	Domain    string
	Aliases   []string
	IP4       []string
	IP6       []string
	Resolver  string
	Degraded  bool
	Issue     resolver.Issue
	Guessed   bool
	Commit    string
	URL       string
	RequestID string
}

// Deps are the collaborators every Service needs.
type Deps struct {
	Normalizer Normalizer
	Resolver   Resolver
	Classifier Classifier
	Publisher  Publisher
}

type Service struct {
	normalizer Normalizer
	resolver   Resolver
	classifier Classifier
	publisher  Publisher

	locker         lock.Locker
	journal        Journal
	sink           EventSink
	builds         BuildTracker
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	logger         *slog.Logger
	defaults       dataset.Defaults
	maxAttempts    int
	publishTimeout time.Duration
	conflictDelay  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLocker replaces the in-process category lock, e.g. with a chain that
// also takes a Redis lease.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithJournal(j Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

func WithEvents(sink EventSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithBuildTracker(b BuildTracker) Option {
	return func(s *Service) {
		s.builds = b
	}
}

// WithDefaults sets the dns list and timeout written into new documents.
func WithDefaults(d dataset.Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithMaxAttempts caps fetch-merge-write cycles per ingestion.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithPublishTimeout bounds each publisher call.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithConflictDelay sets the base pause before re-fetching after a conflict.
func WithConflictDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.conflictDelay = d
		}
	}
}

func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Normalizer == nil:
		return nil, fmt.Errorf("normalizer is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("resolver is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.Publisher == nil:
		return nil, fmt.Errorf("publisher is required")
	}
	s := &Service{
		normalizer:     deps.Normalizer,
		resolver:       deps.Resolver,
		classifier:     deps.Classifier,
		publisher:      deps.Publisher,
		locker:         lock.NewKeyed(),
		tracer:         otel.Tracer(tracerName),
		logger:         slog.Default(),
		defaults:       dataset.Defaults{Timeout: 3600},
		maxAttempts:    defaultMaxAttempts,
		publishTimeout: defaultPublishTimeout,
		conflictDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Categories lists the labels an ingestion may be filed under.
func (s *Service) Categories() []string {
	return s.classifier.Categories()
}

// Recent returns the newest journal entries, or none without a journal.
func (s *Service) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

// Totals returns document-changing ingestions per category.
func (s *Service) Totals(ctx context.Context) (map[string]int, error) {
	if s.journal == nil {
		return map[string]int{}, nil
	}
	return s.journal.Totals(ctx)
}

// Ingest runs the full pipeline for req. Every terminal outcome, success or
// failure, is journaled and emitted as an event.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.Ingest")
	defer span.End()

	res, err := s.ingest(ctx, req)
	if err != nil {
		err = s.terminal(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.recordFailure(ctx, req, res, err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("ingest.status", string(res.Status)),
		attribute.String("ingest.category", res.Category),
		attribute.String("ingest.domain", res.Domain),
	)
	s.recordSuccess(ctx, req, res)
	return res, nil
}

// ingest returns a partially filled Result alongside errors so failures can be
// journaled with whatever was known at the time.
func (s *Service) ingest(ctx context.Context, req Request) (Result, error) {
	res := Result{RequestID: requestcontext.RequestID(ctx)}

	explicit := strings.TrimSpace(req.Category)
	if explicit != "" {
		category, err := s.classifier.Validate(explicit)
		if err != nil {
			return res, err
		}
		res.Category = category
	}

	norm, err := s.normalize(ctx, req.Text)
	if err != nil {
		return res, err
	}
	res.Domain = norm.Domain
	res.Aliases = norm.Aliases
	res.Guessed = norm.Guessed

	lookup, category, err := s.resolveAndClassify(ctx, norm, res.Category)
	if err != nil {
		return res, err
	}
	res.Category = category
	res.IP4 = lookup.IP4
	res.IP6 = lookup.IP6
	res.Resolver = lookup.Resolver
	res.Degraded = lookup.Degraded
	res.Issue = lookup.Issue

	if err := s.publish(ctx, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) normalize(ctx context.Context, text string) (normalize.Result, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.normalize")
	defer span.End()
	defer s.observe(metrics.StageNormalize, time.Now())

	norm, err := s.normalizer.Normalize(ctx, text)
	if err != nil {
		span.RecordError(err)
		return normalize.Result{}, err
	}
	span.SetAttributes(attribute.String("ingest.domain", norm.Domain), attribute.Bool("ingest.guessed", norm.Guessed))
	return norm, nil
}

// resolveAndClassify runs DNS and classification concurrently. A probe made
// while normalizing is reused instead of resolving twice. An explicit
// category skips the classifier.
func (s *Service) resolveAndClassify(ctx context.Context, norm normalize.Result, explicit string) (resolver.Result, string, error) {
	var (
		lookup   resolver.Result
		category = explicit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gctx, span := s.tracer.Start(gctx, "ingest.resolve")
		defer span.End()
		defer s.observe(metrics.StageResolve, time.Now())

		if norm.Probe != nil {
			lookup = *norm.Probe
		} else {
			r, err := s.resolver.Lookup(gctx, norm.Domain)
			if err != nil {
				return err
			}
			lookup = r
		}
		if lookup.Degraded {
			s.metrics.IncDegraded()
			s.logger.WarnContext(gctx, "resolution degraded, storing domain without addresses",
				"domain", norm.Domain,
				"issue", lookup.Issue,
			)
		}
		span.SetAttributes(attribute.Int("dns.ip4", len(lookup.IP4)), attribute.Int("dns.ip6", len(lookup.IP6)))
		return nil
	})
	if explicit == "" {
		g.Go(func() error {
			gctx, span := s.tracer.Start(gctx, "ingest.classify")
			defer span.End()
			defer s.observe(metrics.StageClassify, time.Now())

			label, err := s.classifier.Classify(gctx, norm.Domain, norm.Probe)
			if err != nil {
				span.RecordError(err)
				return err
			}
			category = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resolver.Result{}, "", err
	}
	return lookup, category, nil
}

// publish merges res into its category document under the category lock,
// retrying from a fresh fetch when the write loses a race.
func (s *Service) publish(ctx context.Context, res *Result) error {
	ctx, span := s.tracer.Start(ctx, "ingest.publish", trace.WithAttributes(attribute.String("ingest.category", res.Category)))
	defer span.End()
	defer s.observe(metrics.StagePublish, time.Now())

	release, err := s.locker.Acquire(ctx, res.Category)
	if err != nil {
		return s.publishErr(ctx, err, "could not lock the category")
	}
	defer release()

	in := dataset.Input{
		Category: res.Category,
		Domain:   res.Domain,
		Aliases:  res.Aliases,
		IP4:      res.IP4,
		IP6:      res.IP6,
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.attempt(ctx, in, res, attempt)
		if err != nil {
			return err
		}
		if done {
			span.SetAttributes(attribute.Int("publish.attempts", attempt))
			// the commit stands, but the caller is no longer there to hear about it
			return ctx.Err()
		}
		s.metrics.IncPublishConflict(res.Category)
		s.logger.InfoContext(ctx, "dataset changed underneath us, re-fetching",
			"category", res.Category,
			"domain", res.Domain,
			"attempt", attempt,
		)
		if attempt < s.maxAttempts {
			if err := backoff.Sleep(ctx, backoff.Delay(s.conflictDelay, conflictDelayCap, attempt)); err != nil {
				return err
			}
		}
	}

	conflict := dErrors.New(dErrors.CodeMergeConflict, fmt.Sprintf("%s kept changing during %d attempts", res.Category, s.maxAttempts))
	return dErrors.Wrap(conflict, dErrors.CodePublishFailed, "could not publish the updated dataset")
}

// attempt runs one fetch-merge-write cycle. It returns done=false when the
// write conflicted and the caller should retry.
func (s *Service) attempt(ctx context.Context, in dataset.Input, res *Result, attempt int) (bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	snap, err := s.publisher.Fetch(fetchCtx, in.Category)
	cancel()
	if err != nil {
		return false, s.publishErr(ctx, err, "could not fetch the dataset")
	}

	var current *dataset.Document
	if snap.Exists {
		current, err = dataset.Parse(snap.Content)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodePublishFailed, fmt.Sprintf("stored %s document is malformed", in.Category))
		}
	}

	merged, err := dataset.Merge(current, in, s.defaults)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "merge failed")
	}
	if !merged.Changed() {
		res.Status = dataset.OutcomeNoop
		return true, nil
	}

	content, err := merged.Document.Marshal()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "encode document")
	}

	// once started the write must not be torn down by the caller going away
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	commit, err := s.publisher.Write(writeCtx, in.Category, content, snap.Revision, merged.Message)
	cancel()
	if errors.Is(err, sentinel.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, s.publishErr(ctx, err, "could not write the dataset")
	}

	res.Status = merged.Outcome
	res.Commit = commit.SHA
	res.URL = commit.URL
	s.logger.InfoContext(ctx, "dataset published",
		"category", in.Category,
		"domain", in.Domain,
		"status", merged.Outcome,
		"commit", commit.SHA,
		"attempt", attempt,
	)
	if s.builds != nil && commit.SHA != "" {
		s.builds.Track(ctx, commit.SHA, in.Domain, in.Category)
	}
	return true, nil
}

func (s *Service) publishErr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return dErrors.Wrap(err, dErrors.CodePublishFailed, msg)
}

// terminal maps cancellation of the caller's context onto stable codes. It
// takes precedence over whatever error a stage returned while unwinding.
func (s *Service) terminal(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ingestion timed out")
	case ctx.Err() != nil:
		return dErrors.Wrap(err, dErrors.CodeCancelled, "ingestion cancelled")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeCancelled, "ingestion cancelled")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ingestion failed")
}

func (s *Service) observe(stage string, start time.Time) {
	s.metrics.ObserveStage(stage, time.Since(start))
}
