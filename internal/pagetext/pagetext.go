// Package pagetext fetches a domain's homepage and reduces it to plain text
// for the classifier prompt.
package pagetext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const (
	defaultMaxChars = 2000
	maxBodyBytes    = 2 << 20
	userAgent       = "iplist/1.0 (+category classifier)"
)

// Fetcher is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	scheme   string
	maxChars int
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithScheme replaces https, for tests against plain listeners.
func WithScheme(scheme string) Option {
	return func(f *Fetcher) {
		if scheme != "" {
			f.scheme = scheme
		}
	}
}

// WithMaxChars caps the returned text in runes.
func WithMaxChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxChars = n
		}
	}
}

func New(timeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: timeout},
		scheme:   "https",
		maxChars: defaultMaxChars,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs the homepage of domain, following redirects, and returns its
// visible text with scripts and styles removed.
func (f *Fetcher) Fetch(ctx context.Context, domain string) (string, error) {
	url := f.scheme + "://" + domain + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", domain, resp.StatusCode)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", domain, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", domain, err)
	}
	doc.Find("script, style, noscript, template").Remove()

	return truncate(collapse(doc.Text()), f.maxChars), nil
}

// collapse keeps one phrase per line: lines are trimmed, split on runs of two
// spaces and blank pieces dropped.
func collapse(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				out = append(out, phrase)
			}
		}
	}
	return strings.Join(out, "\n")
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
