package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"iplist/internal/ingest/journal"
	"iplist/internal/ingest/service"
	dErrors "iplist/pkg/domain-errors"
	"iplist/pkg/platform/httputil"
	"iplist/pkg/requestcontext"
)

// Service is the ingest pipeline as seen by HTTP.
type Service interface {
	Ingest(ctx context.Context, req service.Request) (service.Result, error)
	Categories() []string
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Totals(ctx context.Context) (map[string]int, error)
}

// Handler wires ingest endpoints to the ingest service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts ingest endpoints on the router. ingest middlewares wrap
// POST /v1/ingest only.
func (h *Handler) Register(r chi.Router, ingest ...func(http.Handler) http.Handler) {
	r.With(ingest...).Post("/v1/ingest", h.HandleIngest)
	r.Get("/v1/categories", h.HandleCategories)
	r.Get("/v1/ingestions", h.HandleIngestions)
}

// HandleIngest handles POST /v1/ingest.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IngestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Ingest(ctx, service.Request{Text: req.Text, Category: req.Category})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeClassificationFailed) {
			httputil.WriteJSON(w, httputil.StatusFor(err), ClassificationErrorResponse{
				ErrorResponse: httputil.NewErrorResponse(err),
				Categories:    h.service.Categories(),
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ingest request served",
		"request_id", requestID,
		"domain", res.Domain,
		"category", res.Category,
		"status", res.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(res))
}

// HandleCategories handles GET /v1/categories.
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	totals, err := h.service.Totals(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load category totals",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CategoriesResponse{
		Categories: h.service.Categories(),
		Totals:     totals,
	})
}

// HandleIngestions handles GET /v1/ingestions?limit=N.
func (h *Handler) HandleIngestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.service.Recent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list ingestions",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, IngestionsResponse{Ingestions: entries})
}
