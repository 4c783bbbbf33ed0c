// Package api provides the localhost HTTP surface the UI shell talks to.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/engine"
	"github.com/readmarkapp/readmark-agent/internal/session"
	"github.com/readmarkapp/readmark-agent/internal/store"
	"github.com/readmarkapp/readmark-agent/internal/visibility"
)

// Version reported by the health endpoint and the OpenAPI document.
const Version = "0.1.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine   *engine.Engine
	sessions *session.Manager
	tracker  *visibility.Tracker
	store    store.Store
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates the agent's HTTP server with all routes configured.
func NewServer(cfg *config.Config, eng *engine.Engine, sessions *session.Manager, tracker *visibility.Tracker, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		engine:   eng,
		sessions: sessions,
		tracker:  tracker,
		store:    st,
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig("ReadMark Rank Agent", Version)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack. The shell origin is the
// only allowed CORS origin; the agent binds loopback so everything else is
// local tooling.
func (s *Server) setupMiddleware(cfg *config.Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.Server.ShellOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes registers all HTTP routes.
func (s *Server) setupRoutes() {
	// Health stays a plain chi handler so it works even if the huma layer
	// misbehaves.
	s.router.Get("/health", s.handleHealthCheck)

	s.registerRankRoutes()
	s.registerSessionRoutes()
	s.registerVisibilityRoutes()
}
