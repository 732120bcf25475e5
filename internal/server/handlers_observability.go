package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/observability"
	"github.com/aristath/sentinel/internal/ratelimit"
)

func (s *Server) mountProviderRoutes(r chi.Router) {
	r.Get("/health", s.handleProvidersHealth)
	r.Post("/{provider}/acquire", s.handleProviderAcquire)
}

// handleProviderAcquire lets a caller about to make its own out-of-band
// call to an upstream provider (outside this process's ingest pipeline)
// claim a slot against that provider's shared sliding-window budget first,
// so concurrent tool calls from the same agent session don't collectively
// exceed the vendor's rate limit.
func (s *Server) handleProviderAcquire(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	result, err := s.cfg.RateLimit.Enforce(provider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) mountObservabilityRoutes(r chi.Router) {
	r.Get("/metrics", s.handleObservabilityMetrics)
}

func (s *Server) mountDiagnosticsRoutes(r chi.Router) {
	r.Get("/readiness", s.handleDiagnosticsReadiness)
}

var knownProviders = []string{"kite", "nse", "tradingview"}

// handleProvidersHealth reports, per known upstream provider, its configured
// rate limit (max_requests, window_seconds). It does not read the gate's
// current usage, so it does not say how much of the window is left.
func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	health := make(map[string]interface{}, len(knownProviders))
	for _, provider := range knownProviders {
		limit, err := ratelimit.ProviderLimit(provider)
		if err != nil {
			continue
		}
		health[provider] = map[string]interface{}{
			"max_requests":   limit.MaxRequests,
			"window_seconds": limit.WindowSeconds,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"providers": health})
}

func (s *Server) handleObservabilityMetrics(w http.ResponseWriter, r *http.Request) {
	diagnostics := observability.Collect(s.cfg.StartupTime)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"diagnostics":  diagnostics,
		"pending_jobs": s.cfg.Jobs.PendingCount(),
	})
}

func (s *Server) handleDiagnosticsReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	overall := http.StatusOK

	if err := s.cfg.StateStore.Conn().Ping(); err != nil {
		checks["state_db"] = "unavailable: " + err.Error()
		overall = http.StatusServiceUnavailable
	} else {
		checks["state_db"] = "ok"
	}

	if err := s.cfg.AnalyticsStore.Conn().Ping(); err != nil {
		checks["analytics_db"] = "unavailable: " + err.Error()
		overall = http.StatusServiceUnavailable
	} else {
		checks["analytics_db"] = "ok"
	}

	s.writeJSON(w, overall, map[string]interface{}{"checks": checks})
}
