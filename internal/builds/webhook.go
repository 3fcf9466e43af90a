package builds

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "iplist/pkg/domain-errors"
	"iplist/pkg/platform/httputil"
	"iplist/pkg/requestcontext"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	eventHeader     = "X-GitHub-Event"
	signaturePrefix = "sha256="

	eventWorkflowRun = "workflow_run"
	statusCompleted  = "completed"

	maxPayloadBytes = 1 << 20
)

// Resolver settles pending builds for a completed run.
type Resolver interface {
	Resolve(ctx context.Context, conclusion, headSHA string) []Pending
}

// Webhook receives GitHub workflow_run deliveries.
type Webhook struct {
	secret   []byte
	resolver Resolver
	logger   *slog.Logger
}

func NewWebhook(secret string, resolver Resolver, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{secret: []byte(secret), resolver: resolver, logger: logger}
}

func (h *Webhook) Register(r chi.Router) {
	r.Post("/webhooks/github", h.HandleGitHub)
}

type workflowRunPayload struct {
	WorkflowRun struct {
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		HeadSHA    string `json:"head_sha"`
		HTMLURL    string `json:"html_url"`
	} `json:"workflow_run"`
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Status  string `json:"status"`
	Settled int    `json:"settled"`
}

// HandleGitHub handles POST /webhooks/github.
func (h *Webhook) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing signature"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read payload"))
		return
	}
	if !h.verify(signature, body) {
		h.logger.WarnContext(ctx, "webhook signature mismatch", "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid signature"))
		return
	}

	if r.Header.Get(eventHeader) != eventWorkflowRun {
		httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}

	var payload workflowRunPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON payload"))
		return
	}
	run := payload.WorkflowRun
	if run.Status != statusCompleted {
		httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "pending"})
		return
	}

	h.logger.InfoContext(ctx, "workflow run completed",
		"request_id", requestID,
		"conclusion", run.Conclusion,
		"head_sha", run.HeadSHA,
		"url", run.HTMLURL,
	)
	settled := h.resolver.Resolve(ctx, run.Conclusion, run.HeadSHA)
	httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "processed", Settled: len(settled)})
}

func (h *Webhook) verify(signature string, body []byte) bool {
	hexSig, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
