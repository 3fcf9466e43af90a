// Package requesttime pins one "now" per HTTP request so the journal entry,
// the emitted events and the log lines of a single ingestion agree on time.
package requesttime

import (
	"net/http"
	"time"

	"iplist/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
