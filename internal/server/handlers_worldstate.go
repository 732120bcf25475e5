package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountWorldStateRoutes(r chi.Router) {
	r.Post("/manifest", s.handleBuildWorldStateManifest)
	r.Get("/manifest/{manifestID}", s.handleGetWorldStateManifest)
	r.Post("/completeness", s.handleWorldStateCompleteness)
	r.Post("/pit-validate", s.handleWorldStatePITValidate)
}

type worldStateManifestRequest struct {
	Universe         []string `json:"universe"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	AdjustmentPolicy string   `json:"adjustment_policy"`
}

func (s *Server) handleBuildWorldStateManifest(w http.ResponseWriter, r *http.Request) {
	var req worldStateManifestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	manifest, err := s.cfg.WorldState.BuildManifest(req.Universe, req.StartDate, req.EndDate, req.AdjustmentPolicy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleGetWorldStateManifest(w http.ResponseWriter, r *http.Request) {
	manifestID := chi.URLParam(r, "manifestID")
	manifest, err := s.cfg.WorldState.GetManifest(manifestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, manifest)
}

type worldStateRangeRequest struct {
	Universe   []string `json:"universe"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	StrictMode bool     `json:"strict_mode"`
}

func (s *Server) handleWorldStateCompleteness(w http.ResponseWriter, r *http.Request) {
	var req worldStateRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.cfg.WorldState.BuildCompletenessReport(req.Universe, req.StartDate, req.EndDate, req.StrictMode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWorldStatePITValidate(w http.ResponseWriter, r *http.Request) {
	var req worldStateRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.cfg.WorldState.ValidatePIT(req.Universe, req.StartDate, req.EndDate, req.StrictMode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
