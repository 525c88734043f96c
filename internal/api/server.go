// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/digest"
	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/pipeline"
	"github.com/entrylevelhq/jobcrawler/internal/telemetry"
)

const defaultRecentHours = 24

// Server wires HTTP handlers to the runner and repository.
type Server struct {
	router  chi.Router
	runner  *pipeline.Runner
	repo    jobs.Repository
	logger  *zap.Logger
	baseCtx context.Context
}

// NewServer constructs a Server with middleware and routes. Background runs
// started by POST /v1/crawl inherit baseCtx, so they stop with the process
// instead of outliving a shutdown.
func NewServer(baseCtx context.Context, runner *pipeline.Runner, repo jobs.Repository, logger *zap.Logger) *Server {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Server{
		runner:  runner,
		repo:    repo,
		logger:  logger,
		baseCtx: baseCtx,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.triggerCrawl)
		r.Post("/cleanup", s.triggerCleanup)
		r.Get("/jobs/recent", s.recentJobs)
		r.Get("/digest", s.renderDigest)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.ListActiveSources(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// triggerCrawl accepts a run and returns immediately. The run continues in
// the background on the server-lifetime context, detached from the request;
// only one run may be active.
func (s *Server) triggerCrawl(w http.ResponseWriter, _ *http.Request) {
	err := s.runner.RunAllAsync(s.baseCtx)
	if errors.Is(err, pipeline.ErrCrawlInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) triggerCleanup(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 7)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := s.runner.Cleanup(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) recentJobs(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", defaultRecentHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	postings, err := s.repo.GetRecent(r.Context(), hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load recent jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(postings),
		"jobs":  postings,
	})
}

func (s *Server) renderDigest(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", defaultRecentHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text, err := digest.FromRepository(r.Context(), s.repo, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build digest")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		s.logger.Error("digest write failed", zap.Error(err))
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
