// Package reasoner talks to a generative-language API. The classifier uses it
// to pick a category and the normalizer uses it to guess a service's domain.
package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const maxResponseBytes = 1 << 20

// Gemini is a generateContent client that rotates API keys when one is
// throttled or rejected.
type Gemini struct {
	baseURL string
	model   string
	keys    []string
	next    atomic.Uint64
	client  *http.Client
	logger  *slog.Logger
}

type GeminiOption func(*Gemini)

func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *Gemini) {
		if c != nil {
			g.client = c
		}
	}
}

func WithLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGemini builds a client for model at baseURL
// (https://generativelanguage.googleapis.com/v1beta/models).
func NewGemini(baseURL, model string, keys []string, timeout time.Duration, opts ...GeminiOption) *Gemini {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	g := &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		keys:    clean,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether at least one key is set.
func (g *Gemini) Configured() bool {
	return len(g.keys) > 0
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt and returns the first candidate's text, trimmed.
// Each key is tried at most once per call.
func (g *Gemini) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !g.Configured() {
		return "", NewError(ErrorNotConfigured, "no API key configured", nil)
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{MaxOutputTokens: maxTokens, Temperature: 0.1},
	})
	if err != nil {
		return "", NewError(ErrorInternal, "encode request", err)
	}
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	var lastErr error
	start := g.next.Add(1) - 1
	for i := range g.keys {
		idx := (start + uint64(i)) % uint64(len(g.keys))
		text, status, err := g.call(ctx, url, g.keys[idx], body)
		if err == nil {
			return text, nil
		}
		if status == http.StatusTooManyRequests || status == http.StatusForbidden {
			g.logger.WarnContext(ctx, "reasoner key rejected, rotating",
				"key_index", idx,
				"status", status,
			)
			// next call starts after the rejected key
			g.next.Store(idx + 1)
			lastErr = err
			continue
		}
		return "", err
	}
	return "", lastErr
}

func (g *Gemini) call(ctx context.Context, url, key string, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, NewError(ErrorInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", 0, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", resp.StatusCode, transportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", resp.StatusCode, NewError(ErrorRateLimited, "rate limited", nil)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return "", resp.StatusCode, NewError(ErrorAuthentication, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return "", resp.StatusCode, NewError(ErrorOutage, fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return "", resp.StatusCode, NewError(ErrorBadData, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", resp.StatusCode, NewError(ErrorBadData, "decode response", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", resp.StatusCode, NewError(ErrorBadData, "no candidates returned", nil)
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), resp.StatusCode, nil
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorInternal, "request cancelled", err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewError(ErrorTimeout, "request timed out", err)
	}
	return NewError(ErrorOutage, "request failed", err)
}
