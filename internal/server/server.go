package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/config"
	apperrors "github.com/itemtally/itemtally/internal/errors"
	"github.com/itemtally/itemtally/internal/observability"
	"github.com/itemtally/itemtally/internal/server/handlers"
	servermw "github.com/itemtally/itemtally/internal/server/middleware"
)

// Options wires the status API to its backends.
type Options struct {
	Server config.ServerConfig
	// Resume backs /resume; nil answers 503.
	Resume handlers.ResumeReader
	// Health runs the checks behind /health; a manager without checks is
	// created when nil.
	Health *handlers.HealthManager
	// AdminToken enables POST /admin/signal when set.
	AdminToken string
}

// Server is the read-only status API.
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
	health *handlers.HealthManager
	resume *handlers.ResumeHandlers
}

// New builds the router and registers the routes.
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	health := opts.Health
	if health == nil {
		health = handlers.NewHealthManager(handlers.Build().Version)
	}

	s := &Server{
		router: r,
		opts:   opts,
		health: health,
		resume: &handlers.ResumeHandlers{Reader: opts.Resume},
	}

	s.registerRoutes()

	return s
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	cfg := s.opts.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 120*time.Second),
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
