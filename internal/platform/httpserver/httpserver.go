package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server behind the CLI's observability listener.
// Scrapes are small, so every timeout is short.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
