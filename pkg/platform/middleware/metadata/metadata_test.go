package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iplist/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	resolver, err := NewClientIP([]string{"10.0.0.0/8", "2001:db8:ffff::1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{name: "forwarded address behind trusted proxy", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.7"}, remoteAddr: "10.0.0.1:4000", expected: "203.0.113.5"},
		{name: "spoofed leftmost hop is skipped", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5"}, remoteAddr: "10.0.0.1:4000", expected: "203.0.113.5"},
		{name: "forwarded header from untrusted peer is ignored", headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, remoteAddr: "192.0.2.10:51234", expected: "192.0.2.10"},
		{name: "real ip header behind trusted proxy", headers: map[string]string{"X-Real-IP": " 198.51.100.2 "}, remoteAddr: "10.0.0.1:4000", expected: "198.51.100.2"},
		{name: "real ip header from untrusted peer is ignored", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remoteAddr: "192.0.2.10:4000", expected: "192.0.2.10"},
		{name: "garbage hops fall back to peer", headers: map[string]string{"X-Forwarded-For": "nope, 10.0.0.9"}, remoteAddr: "10.0.0.1:4000", expected: "10.0.0.1"},
		{name: "trusted bare ipv6 proxy", headers: map[string]string{"X-Forwarded-For": "2001:db8::42"}, remoteAddr: "[2001:db8:ffff::1]:443", expected: "2001:db8::42"},
		{name: "ipv4 remote addr", remoteAddr: "192.0.2.10:51234", expected: "192.0.2.10"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:443", expected: "2001:db8::1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.10", expected: "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, resolver.FromRequest(r))
		})
	}
}

func TestClientIPWithoutTrustedProxies(t *testing.T) {
	resolver, err := NewClientIP(nil)
	require.NoError(t, err)

	var seen string
	h := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.ClientIP(r.Context())
	}))

	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2"} {
		r := httptest.NewRequest(http.MethodPost, "/v1/ingest", nil)
		r.RemoteAddr = "192.0.2.77:1234"
		r.Header.Set("X-Forwarded-For", spoofed)
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, "192.0.2.77", seen, "rotating the header must not change the key")
	}
}

func TestNewClientIPRejectsInvalidEntries(t *testing.T) {
	_, err := NewClientIP([]string{"10.0.0.0/8", "not-a-cidr"})
	assert.ErrorContains(t, err, "not-a-cidr")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("inbound header is kept", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
	})

	t.Run("missing header generates one", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	})
}
