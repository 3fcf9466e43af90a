package publisher

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"iplist/pkg/platform/sentinel"
)

// fakeContents implements the subset of the contents API the adapter uses.
type fakeContents struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     []string
	puts     []putRequest
	status   int
	authSeen string
	accepts  []string

	// large serves files the way the API does above 1 MB: no inline content
	// unless the raw media type is requested.
	large bool
}

func blobSHA(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

func (f *fakeContents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authSeen = r.Header.Get("Authorization")
	f.accepts = append(f.accepts, r.Header.Get("Accept"))

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"forced"}`))
		return
	}

	p := strings.TrimPrefix(r.URL.Path, "/repos/acme/lists/contents/")
	switch r.Method {
	case http.MethodGet:
		if p == "config" {
			entries := []map[string]string{{"type": "file", "name": "README.md"}, {"type": "dir", "name": ".github"}}
			for _, d := range f.dirs {
				entries = append(entries, map[string]string{"type": "dir", "name": d})
			}
			_ = json.NewEncoder(w).Encode(entries)
			return
		}
		content, ok := f.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		if f.large {
			if r.Header.Get("Accept") == mediaRaw {
				_, _ = w.Write(content)
				return
			}
			_ = json.NewEncoder(w).Encode(contentFile{Type: "file", Name: "list.json", SHA: blobSHA(content), Encoding: "none"})
			return
		}
		encoded := base64.StdEncoding.EncodeToString(content)
		// the API wraps base64 at 60 columns
		if len(encoded) > 60 {
			encoded = encoded[:60] + "\n" + encoded[60:]
		}
		_ = json.NewEncoder(w).Encode(contentFile{Type: "file", Name: "list.json", SHA: blobSHA(content), Content: encoded, Encoding: "base64"})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		var req putRequest
		_ = json.Unmarshal(body, &req)
		f.puts = append(f.puts, req)

		current, exists := f.files[p]
		if exists && req.SHA == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"\"sha\" wasn't supplied."}`))
			return
		}
		if exists && req.SHA != blobSHA(current) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"does not match"}`))
			return
		}
		content, _ := base64.StdEncoding.DecodeString(req.Content)
		f.files[p] = content
		status := http.StatusOK
		if !exists {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"content":{"sha":"` + blobSHA(content) + `"},"commit":{"sha":"c0ffee","html_url":"https://github.com/acme/lists/commit/c0ffee"}}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// =============================================================================
// GitHub Publisher Test Suite
// =============================================================================

type GitHubSuite struct {
	suite.Suite
	fake *fakeContents
	srv  *httptest.Server
	gh   *GitHub
}

func TestGitHubSuite(t *testing.T) {
	suite.Run(t, new(GitHubSuite))
}

func (s *GitHubSuite) SetupTest() {
	s.fake = &fakeContents{files: map[string][]byte{}, dirs: []string{"streaming", "ai"}}
	s.srv = httptest.NewServer(s.fake)
	gh, err := NewGitHub("acme/lists", "tok", 2*time.Second,
		WithAPIURL(s.srv.URL),
		WithBranch("main"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.gh = gh
}

func (s *GitHubSuite) TearDownTest() {
	s.srv.Close()
}

func (s *GitHubSuite) TestFetch() {
	ctx := context.Background()

	s.Run("absent document", func() {
		snap, err := s.gh.Fetch(ctx, "streaming")
		s.Require().NoError(err)
		s.False(snap.Exists)
		s.Empty(snap.Revision)
		s.Nil(snap.Content)
	})

	s.Run("existing document decodes wrapped base64", func() {
		content := []byte(`{"domains": ["netflix.com", "www.netflix.com", "hulu.com", "disneyplus.com"]}` + "\n")
		s.fake.files["config/streaming/list.json"] = content

		snap, err := s.gh.Fetch(ctx, "streaming")
		s.Require().NoError(err)
		s.True(snap.Exists)
		s.Equal(content, snap.Content)
		s.Equal(blobSHA(content), snap.Revision)
		s.Equal("Bearer tok", s.fake.authSeen)
	})

	s.Run("server error is unavailable", func() {
		s.fake.status = http.StatusBadGateway
		defer func() { s.fake.status = 0 }()

		_, err := s.gh.Fetch(ctx, "streaming")
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})
}

func (s *GitHubSuite) TestFetchLargeFileUsesRawMedia() {
	ctx := context.Background()
	content := []byte("{\n    \"domains\": [\n        \"big.example\"\n    ]\n}\n")
	s.fake.files["config/streaming/list.json"] = content
	s.fake.large = true

	snap, err := s.gh.Fetch(ctx, "streaming")
	s.Require().NoError(err)
	s.True(snap.Exists)
	s.Equal(content, snap.Content)
	s.Equal(blobSHA(content), snap.Revision)
	s.Equal([]string{mediaJSON, mediaRaw}, s.fake.accepts)

	// the revision from the metadata call is accepted by the next write
	_, err = s.gh.Write(ctx, "streaming", append(content, ' '), snap.Revision, "fix(streaming): update big.example")
	s.NoError(err)
}

func (s *GitHubSuite) TestWrite() {
	ctx := context.Background()

	s.Run("create sends no sha", func() {
		commit, err := s.gh.Write(ctx, "ai", []byte("{}\n"), "", "feat(ai): add openai.com")
		s.Require().NoError(err)
		s.Equal("c0ffee", commit.SHA)
		s.Equal("https://github.com/acme/lists/commit/c0ffee", commit.URL)

		last := s.fake.puts[len(s.fake.puts)-1]
		s.Empty(last.SHA)
		s.Equal("main", last.Branch)
		s.Equal("feat(ai): add openai.com", last.Message)
		s.Equal([]byte("{}\n"), s.fake.files["config/ai/list.json"])
	})

	s.Run("update with fetched revision", func() {
		snap, err := s.gh.Fetch(ctx, "ai")
		s.Require().NoError(err)

		_, err = s.gh.Write(ctx, "ai", []byte(`{"domains": []}`), snap.Revision, "fix(ai): update claude.ai")
		s.Require().NoError(err)
	})

	s.Run("stale revision conflicts", func() {
		_, err := s.gh.Write(ctx, "ai", []byte("x"), blobSHA([]byte("{}\n")), "fix(ai): update x")
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("create over existing file conflicts", func() {
		_, err := s.gh.Write(ctx, "ai", []byte("x"), "", "feat(ai): add x")
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unauthorized is not a conflict", func() {
		s.fake.status = http.StatusUnauthorized
		defer func() { s.fake.status = 0 }()

		_, err := s.gh.Write(ctx, "ai", []byte("x"), "", "feat(ai): add x")
		s.Require().Error(err)
		s.NotErrorIs(err, sentinel.ErrConflict)
		s.Contains(err.Error(), "forced")
	})
}

func (s *GitHubSuite) TestCategoriesListsDirectories() {
	names, err := s.gh.Categories(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{"ai", "streaming"}, names)
}

func (s *GitHubSuite) TestLayout() {
	gh, err := NewGitHub("acme/lists", "tok", time.Second, WithLayout("/data/", "domains.json"))
	s.Require().NoError(err)
	s.Equal("data/streaming/domains.json", gh.documentPath("streaming"))
}

func (s *GitHubSuite) TestNewValidates() {
	_, err := NewGitHub("lists", "tok", time.Second)
	s.Error(err)
	_, err = NewGitHub("acme/lists", "", time.Second)
	s.Error(err)
}
