// Package resolver resolves a domain to its A and AAAA records across an
// ordered list of DNS resolvers.
//
// Resolvers are tried in order. The first one that returns at least one
// address wins and its answer is used as-is; answers are never merged across
// resolvers. When every resolver fails the lookup still succeeds with empty
// address sets and Degraded set.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	pstrings "iplist/pkg/platform/strings"
)

// Exchanger sends one DNS message to a server. *dns.Client implements it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Observer receives per-resolver outcomes.
type Observer interface {
	IncResolverAnswer(resolver, outcome string)
}

// Cache stores non-degraded results between lookups.
type Cache interface {
	Get(ctx context.Context, domain string) (Result, bool, error)
	Set(ctx context.Context, domain string, res Result) error
}

// Resolver is safe for concurrent use.
type Resolver struct {
	servers  []string
	timeout  time.Duration
	udp      Exchanger
	tcp      Exchanger
	cache    Cache
	observer Observer
	logger   *slog.Logger
	group    singleflight.Group
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithCache(cache Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// New builds a resolver over servers with a per-query timeout.
func New(servers []string, timeout time.Duration, opts ...Option) (*Resolver, error) {
	endpoints, err := NormalizeEndpoints(servers)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("resolver timeout must be positive")
	}

	r := &Resolver{
		servers: endpoints,
		timeout: timeout,
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Servers returns the normalized endpoints in query order.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// Lookup resolves domain. The only errors are an invalid domain and a
// cancelled ctx; resolver failures produce a degraded Result instead.
func (r *Resolver) Lookup(ctx context.Context, domain string) (Result, error) {
	if _, ok := dns.IsDomainName(domain); !ok || domain == "" {
		return Result{}, fmt.Errorf("invalid domain name %q", domain)
	}

	if r.cache != nil {
		if res, ok, err := r.cache.Get(ctx, domain); err != nil {
			r.logger.WarnContext(ctx, "dns cache read failed", "domain", domain, "error", err)
		} else if ok {
			return res, nil
		}
	}

	// Coalesced lookups run detached from any single caller; every query is
	// bounded by the per-query timeout.
	ch := r.group.DoChan(domain, func() (any, error) {
		return r.lookup(context.WithoutCancel(ctx), domain), nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-ch:
		res := out.Val.(Result)
		if !res.Degraded && r.cache != nil {
			if err := r.cache.Set(ctx, domain, res); err != nil {
				r.logger.WarnContext(ctx, "dns cache write failed", "domain", domain, "error", err)
			}
		}
		return res, nil
	}
}

func (r *Resolver) lookup(ctx context.Context, domain string) Result {
	res := Result{Domain: domain, IP4: []string{}, IP6: []string{}}
	fqdn := dns.Fqdn(domain)

	for _, server := range r.servers {
		start := time.Now()
		ip4, ip6, issue, err := r.queryServer(ctx, server, fqdn)
		attempt := Attempt{Resolver: server, Issue: issue, Duration: time.Since(start)}
		if err != nil {
			attempt.Error = err.Error()
		}
		res.Attempts = append(res.Attempts, attempt)

		if len(ip4) > 0 || len(ip6) > 0 {
			r.observe(server, "answered")
			res.IP4, res.IP6 = ip4, ip6
			res.Resolver = server
			res.Issue = IssueNone
			return res
		}

		r.observe(server, string(issue))
		res.Issue = worse(res.Issue, issue)
		r.logger.DebugContext(ctx, "resolver returned no address",
			"domain", domain,
			"resolver", server,
			"issue", issue,
			"error", err,
		)
	}

	res.Degraded = true
	return res
}

// queryServer asks one server for A and AAAA concurrently.
func (r *Resolver) queryServer(ctx context.Context, server, fqdn string) (ip4, ip6 []string, issue Issue, err error) {
	var (
		issue4, issue6 Issue
		err4, err6     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ip4, issue4, err4 = r.query(gctx, server, fqdn, dns.TypeA)
		return nil
	})
	g.Go(func() error {
		ip6, issue6, err6 = r.query(gctx, server, fqdn, dns.TypeAAAA)
		return nil
	})
	_ = g.Wait()

	if len(ip4) > 0 || len(ip6) > 0 {
		return ip4, ip6, IssueNone, nil
	}
	return nil, nil, worse(issue4, issue6), errors.Join(err4, err6)
}

func (r *Resolver) query(ctx context.Context, server, fqdn string, qtype uint16) ([]string, Issue, error) {
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.SetEdns0(1232, false)

	resp, _, err := r.udp.ExchangeContext(qctx, msg, server)
	if err == nil && resp != nil && resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(qctx, msg, server)
	}
	if err != nil {
		return nil, classifyErr(err), err
	}
	if resp == nil {
		return nil, IssueError, errors.New("empty response")
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, IssueNXDomain, nil
	case dns.RcodeServerFailure, dns.RcodeRefused:
		return nil, IssueNoNameservers, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	default:
		return nil, IssueError, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}

	addrs := extract(resp, qtype)
	if len(addrs) == 0 {
		return nil, IssueNoAnswer, nil
	}
	return addrs, IssueNone, nil
}

// extract collects addresses of qtype from the answer section, following
// whatever CNAME chain the recursive resolver already expanded.
func extract(resp *dns.Msg, qtype uint16) []string {
	set := pstrings.NewSet(pstrings.Exact)
	for _, rr := range resp.Answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				ip = v.A
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				ip = v.AAAA
			}
		}
		if ip == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		if qtype == dns.TypeA {
			addr = addr.Unmap()
		}
		set.Add(addr.String())
	}
	return set.Values()
}

func classifyErr(err error) Issue {
	if errors.Is(err, context.DeadlineExceeded) {
		return IssueTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return IssueTimeout
	}
	return IssueError
}

func (r *Resolver) observe(server, outcome string) {
	if r.observer != nil {
		r.observer.IncResolverAnswer(server, outcome)
	}
}
