package testutil

import (
	"net/http"
	"time"

	"iplist/pkg/requestcontext"
)

// WithRequestID sets the request ID on req the way the metadata middleware
// would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
