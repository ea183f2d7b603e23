package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ekyc/internal/platform/httpserver"
	platformmetrics "ekyc/internal/platform/metrics"
	"ekyc/internal/platform/middleware"
	"ekyc/internal/ratelimit"
)

const shutdownTimeout = 5 * time.Second

// newObservabilityRouter serves /metrics and /healthz while a batch runs.
// It is not a verification API.
func newObservabilityRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.Logger(a.logger))
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler(a.registry))
	r.Get("/healthz", a.handleHealth)
	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	RateLimiter string `json:"rate_limiter"`
	RedisError  string `json:"redis_error,omitempty"`
}

// handleHealth reports "degraded" while admission runs on the in-memory
// fallback. The process is still serving, so the code stays 200.
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", RateLimiter: "memory"}
	if a.redis != nil {
		resp.RateLimiter = "redis"
		if err := a.redis.Health(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.RedisError = err.Error()
		}
		if fb, ok := a.store.(*ratelimit.FallbackStore); ok && fb.Degraded() {
			resp.Status = "degraded"
			resp.RateLimiter = "memory-fallback"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// serveObservability starts the listener and returns a stop function.
func (a *app) serveObservability(ctx context.Context, addr string) func() {
	srv := httpserver.New(addr, newObservabilityRouter(a))
	go func() {
		a.logger.InfoContext(ctx, "observability listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.ErrorContext(ctx, "observability listener failed", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.WarnContext(ctx, "observability listener shutdown failed", "error", err)
		}
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
