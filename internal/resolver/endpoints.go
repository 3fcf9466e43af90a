package resolver

import (
	"fmt"
	"net"
	"strings"

	pstrings "iplist/pkg/platform/strings"
)

const defaultPort = "53"

// NormalizeEndpoints turns resolver specs into host:port form, keeping order
// and dropping duplicates. Bare hosts and bare IPv6 literals get port 53.
func NormalizeEndpoints(specs []string) ([]string, error) {
	set := pstrings.NewSet(pstrings.Fold)
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		ep, err := normalizeEndpoint(spec)
		if err != nil {
			return nil, err
		}
		set.Add(ep)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("no resolver endpoints configured")
	}
	return set.Values(), nil
}

func normalizeEndpoint(spec string) (string, error) {
	if host, port, err := net.SplitHostPort(spec); err == nil {
		if host == "" || port == "" {
			return "", fmt.Errorf("invalid resolver endpoint %q", spec)
		}
		return net.JoinHostPort(host, port), nil
	}
	// bare IPv6 literal, or host without port
	host := strings.TrimSuffix(strings.TrimPrefix(spec, "["), "]")
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("invalid resolver endpoint %q", spec)
	}
	return net.JoinHostPort(host, defaultPort), nil
}
