// Package api provides the HTTP control API for the mirrord daemon.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mirrordapp/mirrord-server/internal/config"
	"github.com/mirrordapp/mirrord-server/internal/engine"
	"github.com/mirrordapp/mirrord-server/internal/sse"
	"github.com/mirrordapp/mirrord-server/internal/validation"
)

// Version is the control API version reported by the instance endpoint.
const Version = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg        *config.Config
	engine     *engine.Engine
	sseManager *sse.Manager
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	validator  *validation.Validator
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, eng *engine.Engine, sseHandler *sse.Handler, sseManager *sse.Manager, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		engine:     eng,
		sseManager: sseManager,
		sseHandler: sseHandler,
		router:     chi.NewRouter(),
		validator:  validation.New(),
		limiter:    NewRateLimiter(120, time.Minute, 30),
		logger:     logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Mirrord API", Version)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerEngineRoutes()

	// SSE is a long-lived stream, so it bypasses huma and hangs directly
	// off the router.
	s.router.Get("/api/v1/engine/stream", s.sseHandler.ServeHTTP)
}
