package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/gcs"
	"github.com/couchcryptid/wildfire-analyser/internal/audit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BucketStatus exposes the latest bucket policy audit attempt.
type BucketStatus interface {
	Last() (audit.Result, bool)
}

// Server exposes health, readiness, bucket audit and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics
// routes. /bucketz is added when bucket is non-nil.
func NewServer(addr string, ready observability.ReadinessChecker, bucket BucketStatus, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", observability.LivenessHandler())
	mux.HandleFunc("GET /readyz", observability.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if bucket != nil {
		mux.HandleFunc("GET /bucketz", handleBucket(bucket))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type bucketResponse struct {
	Status    string            `json:"status"`
	CheckedAt time.Time         `json:"checked_at"`
	Error     string            `json:"error,omitempty"`
	Policy    *gcs.PolicyStatus `json:"policy,omitempty"`
}

// handleBucket reports 503 until an audit has completed, when the latest
// attempt failed, and while the bucket violates its policy.
func handleBucket(bucket BucketStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		res, ok := bucket.Last()
		if !ok {
			observability.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unknown",
				"error":  "no bucket audit has completed",
			})
			return
		}

		resp := bucketResponse{Status: "ok", CheckedAt: res.CheckedAt}
		if res.Status.Bucket != "" {
			resp.Policy = &res.Status
		}
		code := http.StatusOK
		switch {
		case res.Err != nil:
			resp.Status = "error"
			resp.Error = res.Err.Error()
			code = http.StatusServiceUnavailable
		case !res.Status.OK():
			resp.Status = "violated"
			code = http.StatusServiceUnavailable
		}
		observability.WriteJSON(w, code, resp)
	}
}
