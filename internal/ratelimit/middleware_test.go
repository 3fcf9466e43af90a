package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"iplist/internal/platform/metrics"
	dErrors "iplist/pkg/domain-errors"
	"iplist/pkg/requestcontext"
	pkgtestutil "iplist/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis: connection refused")
}

type MiddlewareSuite struct {
	suite.Suite
	metrics *metrics.Metrics
	served  int
	next    http.Handler
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.served = 0
	s.next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.served++
		w.WriteHeader(http.StatusOK)
	})
}

func (s *MiddlewareSuite) request(ip string) *http.Request {
	req := pkgtestutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/ingest", map[string]string{"text": "netflix"})
	return req.WithContext(requestcontext.WithClientIP(req.Context(), ip))
}

func (s *MiddlewareSuite) newMiddleware(store Store, limit int) http.Handler {
	return NewMiddleware(store, limit, time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	).Limit(s.next)
}

func (s *MiddlewareSuite) TestLimit() {
	h := s.newMiddleware(NewMemory(), 2)

	s.Run("allowed requests carry quota headers", func() {
		rr := pkgtestutil.DoRequest(h, s.request("10.0.0.1"))
		s.Equal(http.StatusOK, rr.Code)
		s.Equal("2", rr.Header().Get("X-RateLimit-Limit"))
		s.Equal("1", rr.Header().Get("X-RateLimit-Remaining"))
		s.NotEmpty(rr.Header().Get("X-RateLimit-Reset"))
	})

	s.Run("rejects once the window is full", func() {
		pkgtestutil.DoRequest(h, s.request("10.0.0.1"))
		rr := pkgtestutil.DoRequest(h, s.request("10.0.0.1"))

		pkgtestutil.AssertStatusAndKind(s.T(), rr, http.StatusTooManyRequests, string(dErrors.CodeRateLimited))
		s.NotEmpty(rr.Header().Get("Retry-After"))
		s.Equal(2, s.served)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RateLimited))
	})

	s.Run("other clients are unaffected", func() {
		rr := pkgtestutil.DoRequest(h, s.request("10.0.0.2"))
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *MiddlewareSuite) TestStoreFailureLetsRequestsThrough() {
	h := s.newMiddleware(failingStore{}, 1)

	for range 3 {
		rr := pkgtestutil.DoRequest(h, s.request("10.0.0.1"))
		s.Equal(http.StatusOK, rr.Code)
	}
	s.Equal(3, s.served)
}
