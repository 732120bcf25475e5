package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/preflight"
)

func (s *Server) mountPreflightRoutes(r chi.Router) {
	r.Post("/world-state", s.handlePreflightWorldState)
	r.Post("/backtest", s.handlePreflightBacktest)
	r.Post("/custom-code", s.handlePreflightCustomCode)
	r.Post("/tuning", s.handlePreflightTuning)
}

type preflightRangeRequest struct {
	Universe         []string `json:"universe"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	MaxAllowedSeconds float64  `json:"max_allowed_seconds"`
}

func (s *Server) handlePreflightWorldState(w http.ResponseWriter, r *http.Request) {
	var req preflightRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	est, err := s.cfg.Preflight.EnforceWorldStateBudget(req.Universe, req.StartDate, req.EndDate, req.MaxAllowedSeconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}

func (s *Server) handlePreflightBacktest(w http.ResponseWriter, r *http.Request) {
	var req preflightRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	est, err := s.cfg.Preflight.EnforceBacktestBudget(req.Universe, req.StartDate, req.EndDate, req.MaxAllowedSeconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}

type preflightCustomCodeRequest struct {
	preflightRangeRequest
	ComplexityMultiplier float64 `json:"complexity_multiplier"`
}

func (s *Server) handlePreflightCustomCode(w http.ResponseWriter, r *http.Request) {
	var req preflightCustomCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	est, err := s.cfg.Preflight.EnforceCustomCodeBudget(req.Universe, req.StartDate, req.EndDate, req.ComplexityMultiplier, req.MaxAllowedSeconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}

type preflightTuningRequest struct {
	NumTrials                int     `json:"num_trials"`
	PerTrialEstimatedSeconds float64 `json:"per_trial_estimated_seconds"`
	MaxAllowedSeconds        float64 `json:"max_allowed_seconds"`
}

func (s *Server) handlePreflightTuning(w http.ResponseWriter, r *http.Request) {
	var req preflightTuningRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	est, err := preflight.EnforceTuningBudget(req.NumTrials, req.PerTrialEstimatedSeconds, req.MaxAllowedSeconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}
