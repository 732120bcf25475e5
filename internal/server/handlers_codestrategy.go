package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/codestrategy"
)

func (s *Server) mountCodeStrategyRoutes(r chi.Router) {
	r.Post("/validate", s.handleValidateCodeStrategy)
	r.Get("/{strategyID}/latest", s.handleGetLatestStrategyVersion)
	r.Get("/versions/{versionID}", s.handleGetStrategyVersion)
}

type validateCodeStrategyRequest struct {
	SourceCode string `json:"source_code"`
}

func (s *Server) handleValidateCodeStrategy(w http.ResponseWriter, r *http.Request) {
	var req validateCodeStrategyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := codestrategy.Validate(req.SourceCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetLatestStrategyVersion(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "strategyID")
	version, err := s.cfg.StateStore.GetLatestStrategyVersion(strategyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleGetStrategyVersion(w http.ResponseWriter, r *http.Request) {
	versionID := chi.URLParam(r, "versionID")
	version, err := s.cfg.StateStore.GetStrategyVersion(versionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, version)
}
