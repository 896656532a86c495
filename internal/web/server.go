// Package web provides the HTTP API over a classification session.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/store"
	ourmw "github.com/JonMunkholm/dipendenti/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server exposing runs and their classification.
type Server struct {
	session *core.Session
	runs    *core.RunSet
	store   store.Store // nil when persistence is disabled
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. st may be nil.
func NewServer(session *core.Session, runs *core.RunSet, st store.Store, cfg *config.Config) *Server {
	if runs == nil {
		runs = core.NewRunSet()
	}
	s := &Server{
		session: session,
		runs:    runs,
		store:   st,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(ourmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Post("/runs", s.handleCreateRun)
		r.Post("/runs/{idrun}", s.handleCreateRun)
		r.Post("/preview", s.handlePreview)
		r.Get("/runs/{idrun}", s.handleGetRun)
		r.Get("/runs/{idrun}/accepted", s.handleRunTable(kindAccepted))
		r.Get("/runs/{idrun}/rejected", s.handleRunTable(kindRejected))

		r.Get("/accepted", s.handleUnion(kindAccepted))
		r.Get("/rejected", s.handleUnion(kindRejected))
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr, "session_id", s.session.ID())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown waits for in-flight runs to finish, then stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.session.Limiter().WaitForDrain(ctx); err != nil {
		slog.Warn("runs still in progress at shutdown", "active", s.session.Limiter().ActiveCount())
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
