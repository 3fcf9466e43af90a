package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. WriteTimeout covers a full ingestion: DNS
// fallback across every resolver, a classifier retry and three publish attempts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
