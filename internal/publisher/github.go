package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"iplist/pkg/platform/sentinel"
)

const (
	defaultAPIURL    = "https://api.github.com"
	apiVersion       = "2022-11-28"
	maxResponseBytes = 8 << 20

	mediaJSON = "application/vnd.github+json"
	// mediaRaw returns file bytes directly; needed above the 1 MB limit where
	// the JSON form carries encoding "none" and no content.
	mediaRaw = "application/vnd.github.raw+json"
)

// GitHub reads and writes documents through the repository contents API.
// Documents live at <root>/<category>/<file> on branch.
type GitHub struct {
	apiURL string
	repo   string
	branch string
	token  string
	root   string
	file   string
	client *http.Client
	logger *slog.Logger
}

type GitHubOption func(*GitHub)

func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) {
		if c != nil {
			g.client = c
		}
	}
}

func WithLogger(logger *slog.Logger) GitHubOption {
	return func(g *GitHub) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithAPIURL points the client at a GitHub Enterprise or test server.
func WithAPIURL(u string) GitHubOption {
	return func(g *GitHub) {
		if u != "" {
			g.apiURL = strings.TrimRight(u, "/")
		}
	}
}

// WithBranch sets the branch to read and commit to. Empty means the
// repository's default branch.
func WithBranch(branch string) GitHubOption {
	return func(g *GitHub) {
		g.branch = branch
	}
}

// WithLayout overrides the dataset root directory and per-category file name.
func WithLayout(root, file string) GitHubOption {
	return func(g *GitHub) {
		if file != "" {
			g.file = file
		}
		g.root = strings.Trim(root, "/")
	}
}

// NewGitHub builds a client for repo ("owner/name").
func NewGitHub(repo, token string, timeout time.Duration, opts ...GitHubOption) (*GitHub, error) {
	if repo == "" || !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repo must be owner/name, got %q", repo)
	}
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	g := &GitHub{
		apiURL: defaultAPIURL,
		repo:   repo,
		token:  token,
		root:   "config",
		file:   "list.json",
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type contentFile struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

func (g *GitHub) documentPath(category string) string {
	return path.Join(g.root, category, g.file)
}

func (g *GitHub) contentsURL(p string, withRef bool) string {
	u := fmt.Sprintf("%s/repos/%s/contents/%s", g.apiURL, g.repo, escapePath(p))
	if withRef && g.branch != "" {
		u += "?ref=" + url.QueryEscape(g.branch)
	}
	return u
}

// Fetch returns the document for category. A missing file is not an error.
func (g *GitHub) Fetch(ctx context.Context, category string) (Snapshot, error) {
	snap := Snapshot{Category: category}

	var file contentFile
	status, err := g.do(ctx, http.MethodGet, g.contentsURL(g.documentPath(category), true), nil, &file)
	if err != nil {
		if status == http.StatusNotFound {
			return snap, nil
		}
		return snap, fmt.Errorf("fetch %s: %w", category, err)
	}
	if file.Type != "" && file.Type != "file" {
		return snap, fmt.Errorf("fetch %s: %s is a %s", category, g.documentPath(category), file.Type)
	}

	var content []byte
	switch file.Encoding {
	case "", "base64":
		content, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
		if err != nil {
			return snap, fmt.Errorf("fetch %s: decode content: %w", category, err)
		}
	case "none":
		// the sha from the JSON form stays the revision for the next write
		_, content, err = g.send(ctx, http.MethodGet, g.contentsURL(g.documentPath(category), true), mediaRaw, nil)
		if err != nil {
			return snap, fmt.Errorf("fetch %s: raw content: %w", category, err)
		}
	default:
		return snap, fmt.Errorf("fetch %s: unsupported encoding %q", category, file.Encoding)
	}
	snap.Content = content
	snap.Revision = file.SHA
	snap.Exists = true
	return snap, nil
}

// Write commits content. expectedRevision is the blob sha returned by Fetch,
// empty when creating the file.
func (g *GitHub) Write(ctx context.Context, category string, content []byte, expectedRevision, message string) (Commit, error) {
	body, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     expectedRevision,
		Branch:  g.branch,
	})
	if err != nil {
		return Commit{}, fmt.Errorf("encode write request: %w", err)
	}

	var out putResponse
	status, err := g.do(ctx, http.MethodPut, g.contentsURL(g.documentPath(category), false), body, &out)
	if err != nil {
		switch status {
		case http.StatusConflict, http.StatusUnprocessableEntity:
			// 409: sha does not match the branch head; 422: sha missing for an
			// existing file.
			return Commit{}, fmt.Errorf("write %s: %w", category, sentinel.ErrConflict)
		}
		return Commit{}, fmt.Errorf("write %s: %w", category, err)
	}

	g.logger.InfoContext(ctx, "dataset committed",
		"category", category,
		"commit", out.Commit.SHA,
		"path", g.documentPath(category),
	)
	return Commit{SHA: out.Commit.SHA, URL: out.Commit.HTMLURL}, nil
}

// Categories lists the directories under the dataset root.
func (g *GitHub) Categories(ctx context.Context) ([]string, error) {
	var entries []contentFile
	if _, err := g.do(ctx, http.MethodGet, g.contentsURL(g.root, true), nil, &entries); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "dir" && !strings.HasPrefix(e.Name, ".") {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// do performs one API call and decodes a 2xx body into out. On failure the
// status is returned alongside the error so callers can branch on it.
func (g *GitHub) do(ctx context.Context, method, u string, body []byte, out any) (int, error) {
	status, raw, err := g.send(ctx, method, u, mediaJSON, body)
	if err != nil || out == nil {
		return status, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return status, fmt.Errorf("decode response: %w", err)
	}
	return status, nil
}

// send performs one API call and returns the 2xx body.
func (g *GitHub) send(ctx context.Context, method, u, accept string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%s %s: %w: %v", method, req.URL.Path, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return resp.StatusCode, nil, fmt.Errorf("%s %s: response exceeds %d bytes", method, req.URL.Path, maxResponseBytes)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil, sentinel.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resp.StatusCode, nil, fmt.Errorf("%s %s: status %d: %w", method, req.URL.Path, resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return resp.StatusCode, nil, fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, apiMessage(raw))
	}
}

func apiMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
