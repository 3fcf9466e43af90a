package resolver

import (
	"time"
)

// Issue explains why a resolver, or the whole lookup, produced no address.
type Issue string

const (
	IssueNone          Issue = ""
	IssueNXDomain      Issue = "nxdomain"
	IssueNoAnswer      Issue = "no_answer"
	IssueNoNameservers Issue = "no_nameservers"
	IssueTimeout       Issue = "timeout"
	IssueError         Issue = "error"
)

// priority orders issues when several resolvers fail differently.
func (i Issue) priority() int {
	switch i {
	case IssueNXDomain:
		return 5
	case IssueNoNameservers:
		return 4
	case IssueTimeout:
		return 3
	case IssueNoAnswer:
		return 2
	case IssueError:
		return 1
	default:
		return 0
	}
}

// worse returns the higher-priority issue.
func worse(a, b Issue) Issue {
	if b.priority() > a.priority() {
		return b
	}
	return a
}

// Attempt records one resolver's outcome.
type Attempt struct {
	Resolver string        `json:"resolver"`
	Issue    Issue         `json:"issue,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of a lookup. A degraded result carries no addresses
// and is still a successful lookup.
type Result struct {
	Domain   string    `json:"domain"`
	IP4      []string  `json:"ip4"`
	IP6      []string  `json:"ip6"`
	Resolver string    `json:"resolver,omitempty"`
	Degraded bool      `json:"degraded"`
	Issue    Issue     `json:"issue,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Empty reports whether no address was found.
func (r Result) Empty() bool {
	return len(r.IP4) == 0 && len(r.IP6) == 0
}
