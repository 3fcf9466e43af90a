package service

import (
	"context"
	"time"

	"iplist/internal/events"
	"iplist/internal/ingest/journal"
	dErrors "iplist/pkg/domain-errors"
	"iplist/pkg/requestcontext"
)

// recordTimeout bounds journal and event writes after the pipeline finished.
const recordTimeout = 5 * time.Second

func (s *Service) recordSuccess(ctx context.Context, req Request, res Result) {
	s.metrics.IncIngestion(string(res.Status), "")
	s.logger.InfoContext(ctx, "ingestion finished",
		"request_id", res.RequestID,
		"domain", res.Domain,
		"category", res.Category,
		"status", res.Status,
		"degraded", res.Degraded,
	)

	entry := s.entry(ctx, req, res)
	entry.Status = string(res.Status)

	ev := events.New(events.ForStatus(string(res.Status)))
	ev.Status = string(res.Status)
	if res.Degraded {
		ev.Detail = "resolution_degraded"
	}
	s.record(ctx, entry, ev, res)
}

func (s *Service) recordFailure(ctx context.Context, req Request, res Result, err error) {
	kind := dErrors.CodeOf(err)
	s.metrics.IncIngestion(journal.StatusError, string(kind))

	logArgs := []any{
		"request_id", res.RequestID,
		"input", req.Text,
		"domain", res.Domain,
		"category", res.Category,
		"kind", kind,
		"error", err,
	}
	switch kind {
	case dErrors.CodeAmbiguousInput, dErrors.CodeInvalidCategory, dErrors.CodeClassificationFailed, dErrors.CodeCancelled:
		s.logger.WarnContext(ctx, "ingestion rejected", logArgs...)
	default:
		s.logger.ErrorContext(ctx, "ingestion failed", logArgs...)
	}

	entry := s.entry(ctx, req, res)
	entry.Status = journal.StatusError
	entry.Kind = string(kind)
	entry.Message = dErrors.MessageOf(err)

	ev := events.New(events.TypeIngestFailed)
	ev.Status = journal.StatusError
	ev.Detail = string(kind)
	s.record(ctx, entry, ev, res)
}

func (s *Service) entry(ctx context.Context, req Request, res Result) journal.Entry {
	return journal.Entry{
		RequestID: res.RequestID,
		Input:     req.Text,
		Domain:    res.Domain,
		Category:  res.Category,
		IP4:       res.IP4,
		IP6:       res.IP6,
		Resolver:  res.Resolver,
		Degraded:  res.Degraded,
		Commit:    res.Commit,
		CreatedAt: requestcontext.Now(ctx),
	}
}

// record writes the journal entry and event on a context detached from the
// caller so cancelled ingestions are still accounted for. Failures are logged.
func (s *Service) record(ctx context.Context, entry journal.Entry, ev events.Event, res Result) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.journal != nil {
		if err := s.journal.Record(rctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "failed to journal ingestion",
				"request_id", entry.RequestID,
				"error", err,
			)
		}
	}
	if s.sink != nil {
		ev.RequestID = res.RequestID
		ev.Domain = res.Domain
		ev.Category = res.Category
		ev.Commit = res.Commit
		if err := s.sink.Publish(rctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit ingestion event",
				"request_id", entry.RequestID,
				"type", ev.Type,
				"error", err,
			)
		}
	}
}
