package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/screener"
)

func (s *Server) mountScreenerRoutes(r chi.Router) {
	r.Post("/run", s.handleRunScreen)
}

type screenRequest struct {
	Formula     string   `json:"formula"`
	AsOf        string   `json:"as_of"`
	Universe    []string `json:"universe"`
	TopK        int      `json:"top_k"`
	RankBy      string   `json:"rank_by"`
	SortOrder   string   `json:"sort_order"`
	ShortWindow int      `json:"short_window"`
	LongWindow  int      `json:"long_window"`
}

func (s *Server) handleRunScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.cfg.Screener.RunFormulaScreen(screener.Request{
		Formula: req.Formula, AsOf: req.AsOf, Universe: req.Universe, TopK: req.TopK,
		RankBy: req.RankBy, SortOrder: req.SortOrder, ShortWindow: req.ShortWindow, LongWindow: req.LongWindow,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
