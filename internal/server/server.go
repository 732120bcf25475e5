// Package server provides the HTTP server and routing for Fin-Agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/ingest"
	"github.com/aristath/sentinel/internal/jobs"
	"github.com/aristath/sentinel/internal/live"
	"github.com/aristath/sentinel/internal/observability"
	"github.com/aristath/sentinel/internal/preflight"
	"github.com/aristath/sentinel/internal/ratelimit"
	"github.com/aristath/sentinel/internal/screener"
	"github.com/aristath/sentinel/internal/session"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/tuning"
	"github.com/aristath/sentinel/internal/worldstate"
)

// Config holds the dependencies the HTTP layer is wired against. Every
// field is an already-constructed, already-open component; Server does not
// own their lifecycle beyond the listener itself.
type Config struct {
	Log     zerolog.Logger
	Cfg     *config.Config
	Port    int
	DevMode bool

	StateStore     *store.Store
	AnalyticsStore *analytics.Store

	Ingest     *ingest.Importer
	WorldState *worldstate.Builder
	Backtest   *backtest.Engine
	Tuning     *tuning.Engine
	Live       *live.Engine
	Jobs       *jobs.Manager
	RateLimit  *ratelimit.Gate
	Screener   *screener.Engine
	Preflight  *preflight.Estimator
	Session    *session.Ledger
	Events     *events.Manager

	StartupTime time.Time
}

// Server is the Fin-Agent HTTP API: chi router plus the domain engines it
// dispatches to.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New builds the router and the underlying http.Server, but does not start
// listening; call Start for that.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log,
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(observability.RequestLogger(s.log))
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Route("/data", s.mountDataRoutes)
		r.Route("/world-state", s.mountWorldStateRoutes)
		r.Route("/code-strategy", s.mountCodeStrategyRoutes)
		r.Route("/backtests", s.mountBacktestRoutes)
		r.Route("/tuning", s.mountTuningRoutes)
		r.Route("/live", s.mountLiveRoutes)
		r.Route("/preflight", s.mountPreflightRoutes)
		r.Route("/screener", s.mountScreenerRoutes)
		r.Route("/jobs", s.mountJobRoutes)
		r.Route("/events", s.mountEventRoutes)
		r.Route("/providers", s.mountProviderRoutes)
		r.Route("/observability", s.mountObservabilityRoutes)
		r.Route("/diagnostics", s.mountDiagnosticsRoutes)
		r.Route("/artifacts", s.mountArtifactRoutes)
		r.Route("/session", s.mountSessionRoutes)
		r.Get("/context/delta", s.handleContextDelta)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "fin-agent",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
