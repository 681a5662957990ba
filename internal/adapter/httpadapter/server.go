// Package httpadapter serves health, metrics and job control endpoints.
package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/scheduler"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobRunner lists jobs and runs them on demand.
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunNow(ctx context.Context, name string) error
}

// Server exposes health, readiness, metrics and job endpoints.
type Server struct {
	httpServer *http.Server
	jobs       JobRunner
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, /jobs
// and /jobs/{name}/run routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, jobs JobRunner, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			// Manual job runs hold the response open until the job finishes.
			WriteTimeout: 15 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		jobs:   jobs,
		logger: logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/jobs", s.handleListJobs)
	r.Post("/jobs/{name}/run", s.handleRunJob)

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

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.jobs.Jobs())
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// A disconnecting client does not cancel the run.
	ctx := context.WithoutCancel(r.Context())

	s.logger.Info("manual job run requested", "job", name, "remote", r.RemoteAddr)
	err := s.jobs.RunNow(ctx, name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"status": "not found", "error": err.Error()})
	case err != nil:
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"status": "failed", "error": err.Error()})
	default:
		sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "job": name})
	}
}
