package resolver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Resolver Test Suite
// =============================================================================
// Runs real miekg/dns servers on loopback so the fallback order, per-query
// timeout and no-merge rule are exercised over the wire.

type ResolverSuite struct {
	suite.Suite
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) startServer(h dns.HandlerFunc) string {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	s.Require().NoError(err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: h, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	s.T().Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func answer(ip4, ip6 []string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: 60}
		switch q.Qtype {
		case dns.TypeA:
			hdr.Rrtype = dns.TypeA
			for _, ip := range ip4 {
				m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP(ip).To4()})
			}
		case dns.TypeAAAA:
			hdr.Rrtype = dns.TypeAAAA
			for _, ip := range ip6 {
				m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP(ip)})
			}
		}
		_ = w.WriteMsg(m)
	}
}

func rcode(code int) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, code)
		_ = w.WriteMsg(m)
	}
}

// silent never replies, so the client hits its timeout.
func silent(dns.ResponseWriter, *dns.Msg) {}

func (s *ResolverSuite) newResolver(servers ...string) *Resolver {
	r, err := New(servers, 200*time.Millisecond)
	s.Require().NoError(err)
	return r
}

// =============================================================================
// Fallback
// =============================================================================

func (s *ResolverSuite) TestFallsBackAfterTimeout() {
	slow := s.startServer(silent)
	good := s.startServer(answer([]string{"1.2.3.4"}, nil))

	res, err := s.newResolver(slow, good).Lookup(context.Background(), "example.com")
	s.Require().NoError(err)

	s.Equal([]string{"1.2.3.4"}, res.IP4)
	s.Empty(res.IP6)
	s.Equal(good, res.Resolver)
	s.False(res.Degraded)
	s.Require().Len(res.Attempts, 2)
	s.Equal(IssueTimeout, res.Attempts[0].Issue)
}

func (s *ResolverSuite) TestFirstAnsweringResolverWinsWithoutMerge() {
	first := s.startServer(answer([]string{"1.1.1.1"}, nil))
	second := s.startServer(answer([]string{"2.2.2.2"}, []string{"2001:db8::2"}))

	res, err := s.newResolver(first, second).Lookup(context.Background(), "example.com")
	s.Require().NoError(err)

	s.Equal([]string{"1.1.1.1"}, res.IP4)
	s.Empty(res.IP6)
	s.Equal(first, res.Resolver)
	s.Len(res.Attempts, 1)
}

func (s *ResolverSuite) TestIPv6OnlyAnswerWins() {
	v6 := s.startServer(answer(nil, []string{"2001:DB8::1", "2001:db8::1"}))

	res, err := s.newResolver(v6).Lookup(context.Background(), "example.com")
	s.Require().NoError(err)
	s.Empty(res.IP4)
	s.Equal([]string{"2001:db8::1"}, res.IP6)
}

func (s *ResolverSuite) TestSkipsNXDomainResolver() {
	nx := s.startServer(rcode(dns.RcodeNameError))
	good := s.startServer(answer([]string{"5.6.7.8", "5.6.7.8"}, nil))

	res, err := s.newResolver(nx, good).Lookup(context.Background(), "example.com")
	s.Require().NoError(err)
	s.Equal([]string{"5.6.7.8"}, res.IP4)
	s.Equal(IssueNXDomain, res.Attempts[0].Issue)
}

// =============================================================================
// Degraded resolution
// =============================================================================

func (s *ResolverSuite) TestAllResolversFailIsDegraded() {
	servfail := s.startServer(rcode(dns.RcodeServerFailure))
	empty := s.startServer(answer(nil, nil))
	slow := s.startServer(silent)

	res, err := s.newResolver(empty, slow, servfail).Lookup(context.Background(), "example.com")
	s.Require().NoError(err)

	s.True(res.Degraded)
	s.True(res.Empty())
	s.NotNil(res.IP4)
	s.NotNil(res.IP6)
	s.Empty(res.Resolver)
	s.Equal(IssueNoNameservers, res.Issue)
	s.Len(res.Attempts, 3)
}

func (s *ResolverSuite) TestNXDomainDominatesIssue() {
	slow := s.startServer(silent)
	nx := s.startServer(rcode(dns.RcodeNameError))

	res, err := s.newResolver(slow, nx).Lookup(context.Background(), "nope.example")
	s.Require().NoError(err)
	s.True(res.Degraded)
	s.Equal(IssueNXDomain, res.Issue)
}

// =============================================================================
// Input and cancellation
// =============================================================================

func (s *ResolverSuite) TestInvalidDomain() {
	good := s.startServer(answer([]string{"1.2.3.4"}, nil))
	_, err := s.newResolver(good).Lookup(context.Background(), "")
	s.Error(err)
}

func (s *ResolverSuite) TestCancelledContext() {
	slow := s.startServer(silent)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.newResolver(slow).Lookup(ctx, "example.com")
	s.ErrorIs(err, context.Canceled)
}

func (s *ResolverSuite) TestNewValidates() {
	_, err := New(nil, time.Second)
	s.Error(err)

	_, err = New([]string{"8.8.8.8"}, 0)
	s.Error(err)
}

// =============================================================================
// Cache
// =============================================================================

type memoryCache struct {
	mu    sync.Mutex
	items map[string]Result
	sets  int
}

func (c *memoryCache) Get(_ context.Context, domain string) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.items[domain]
	return res, ok, nil
}

func (c *memoryCache) Set(_ context.Context, domain string, res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[domain] = res
	c.sets++
	return nil
}

func (s *ResolverSuite) TestCacheServesRepeatLookups() {
	var hits int
	var mu sync.Mutex
	counting := func(w dns.ResponseWriter, r *dns.Msg) {
		mu.Lock()
		hits++
		mu.Unlock()
		answer([]string{"1.2.3.4"}, nil)(w, r)
	}
	server := s.startServer(counting)
	cache := &memoryCache{items: map[string]Result{}}

	r, err := New([]string{server}, 200*time.Millisecond, WithCache(cache))
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		res, err := r.Lookup(context.Background(), "example.com")
		s.Require().NoError(err)
		s.Equal([]string{"1.2.3.4"}, res.IP4)
	}

	mu.Lock()
	defer mu.Unlock()
	s.Equal(2, hits, "one A and one AAAA query for the first lookup only")
	s.Equal(1, cache.sets)
}

func (s *ResolverSuite) TestDegradedResultsAreNotCached() {
	empty := s.startServer(answer(nil, nil))
	cache := &memoryCache{items: map[string]Result{}}

	r, err := New([]string{empty}, 200*time.Millisecond, WithCache(cache))
	s.Require().NoError(err)

	res, err := r.Lookup(context.Background(), "example.com")
	s.Require().NoError(err)
	s.True(res.Degraded)
	s.Equal(0, cache.sets)
}

// =============================================================================
// Observer
// =============================================================================

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) IncResolverAnswer(_, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (s *ResolverSuite) TestObserverSeesEachResolver() {
	nx := s.startServer(rcode(dns.RcodeNameError))
	good := s.startServer(answer([]string{"1.2.3.4"}, nil))
	obs := &recordingObserver{}

	r, err := New([]string{nx, good}, 200*time.Millisecond, WithObserver(obs))
	s.Require().NoError(err)

	_, err = r.Lookup(context.Background(), "example.com")
	s.Require().NoError(err)
	s.Equal([]string{"nxdomain", "answered"}, obs.outcomes)
}
