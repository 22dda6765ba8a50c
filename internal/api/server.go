// Package api provides the HTTP surface of the change-tracking agent: a
// reset, a stats read, and page-drains of the new and removed path sets.
package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deltascan/deltascan-agent/internal/http/response"
	"github.com/deltascan/deltascan-agent/internal/ratelimit"
	"github.com/deltascan/deltascan-agent/internal/tracker"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	tracker *tracker.Tracker
	limiter *ratelimit.KeyedRateLimiter
	router  *chi.Mux
	logger  *slog.Logger
}

// Options configures optional server behavior.
type Options struct {
	// RateLimit is requests per second per client IP. 0 disables
	// rate limiting.
	RateLimit float64
	RateBurst int
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(trk *tracker.Tracker, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		tracker: trk,
		router:  chi.NewRouter(),
		logger:  logger,
	}

	if opts.RateLimit > 0 {
		s.limiter = ratelimit.New(opts.RateLimit, opts.RateBurst)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.limiter != nil {
		s.router.Use(s.rateLimit)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Put("/reset", s.handleReset)
	s.router.Get("/stats", s.handleStats)
	s.router.Post("/drain_new", s.handleDrainNew)
	s.router.Post("/drain_removed", s.handleDrainRemoved)
}

// rateLimit rejects requests from clients that exceed the configured
// per-IP rate with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}

		if !s.limiter.Allow(key) {
			s.logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, "too many requests", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, HealthResponse{Status: "ok"}, s.logger)
}
