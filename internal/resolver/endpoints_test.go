package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEndpoints(t *testing.T) {
	got, err := NormalizeEndpoints([]string{
		"127.0.0.11:53",
		" 8.8.8.8 ",
		"2001:4860:4860::8888",
		"[2606:4700:4700::1111]:5353",
		"[2620:fe::fe]",
		"dns.example.net",
		"8.8.8.8:53",
		"",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"127.0.0.11:53",
		"8.8.8.8:53",
		"[2001:4860:4860::8888]:53",
		"[2606:4700:4700::1111]:5353",
		"[2620:fe::fe]:53",
		"dns.example.net:53",
	}, got)
}

func TestNormalizeEndpointsErrors(t *testing.T) {
	_, err := NormalizeEndpoints(nil)
	assert.Error(t, err)

	_, err = NormalizeEndpoints([]string{":53"})
	assert.Error(t, err)

	_, err = NormalizeEndpoints([]string{"not:an:address"})
	assert.Error(t, err)
}

func TestIssuePriority(t *testing.T) {
	assert.Equal(t, IssueNXDomain, worse(IssueTimeout, IssueNXDomain))
	assert.Equal(t, IssueNoNameservers, worse(IssueNoNameservers, IssueTimeout))
	assert.Equal(t, IssueTimeout, worse(IssueNoAnswer, IssueTimeout))
	assert.Equal(t, IssueNoAnswer, worse(IssueError, IssueNoAnswer))
	assert.Equal(t, IssueError, worse(IssueNone, IssueError))
}
