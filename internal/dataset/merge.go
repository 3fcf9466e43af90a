package dataset

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	pstrings "iplist/pkg/platform/strings"
)

// Outcome of a merge.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeNoop    Outcome = "noop"
)

// ErrInvalidInput is returned for a merge without category or domain.
var ErrInvalidInput = errors.New("merge input requires category and domain")

// Input is one ingested record.
type Input struct {
	Category string
	Domain   string
	Aliases  []string
	IP4      []string
	IP6      []string
}

// Added counts the values a merge appended.
type Added struct {
	Domains int
	IP4     int
	IP6     int
}

func (a Added) Total() int { return a.Domains + a.IP4 + a.IP6 }

// Result is the merged document plus what changed.
type Result struct {
	Document *Document
	Outcome  Outcome
	Added    Added
	// Message is the commit description; empty for a no-op.
	Message string
}

// Changed reports whether the result needs publishing.
func (r Result) Changed() bool { return r.Outcome != OutcomeNoop }

// Merge unions in into current, or into a fresh skeleton when current is nil.
// current is never modified.
func Merge(current *Document, in Input, defaults Defaults) (Result, error) {
	category := strings.TrimSpace(in.Category)
	domain := strings.ToLower(strings.TrimSpace(in.Domain))
	if category == "" || domain == "" {
		return Result{}, ErrInvalidInput
	}

	created := current == nil
	var doc *Document
	if created {
		doc = NewSkeleton(defaults)
	} else {
		doc = current.Clone()
	}

	names := make([]string, 0, 1+len(in.Aliases))
	names = append(names, domain)
	for _, alias := range in.Aliases {
		if a := strings.ToLower(strings.TrimSpace(alias)); a != "" {
			names = append(names, a)
		}
	}

	var added Added
	doc.Domains, added.Domains = pstrings.Union(doc.Domains, names, pstrings.Fold)
	doc.IP4, added.IP4 = pstrings.Union(doc.IP4, canonicalAddrs(in.IP4), addrKey)
	doc.IP6, added.IP6 = pstrings.Union(doc.IP6, canonicalAddrs(in.IP6), addrKey)

	res := Result{Document: doc, Added: added}
	switch {
	case created:
		res.Outcome = OutcomeCreated
		res.Message = fmt.Sprintf("feat(%s): add %s", category, domain)
	case added.Total() > 0:
		res.Outcome = OutcomeUpdated
		res.Message = fmt.Sprintf("fix(%s): update %s", category, domain)
	default:
		res.Outcome = OutcomeNoop
		res.Document = current
	}
	return res, nil
}

// addrKey compares addresses by canonical form so "2001:DB8::1" and
// "2001:db8:0::1" are one member. Unparseable values compare verbatim.
func addrKey(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return addr.String()
}

func canonicalAddrs(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, addrKey(a))
		}
	}
	return out
}
