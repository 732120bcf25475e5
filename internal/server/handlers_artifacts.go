package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/errkind"
)

// mountArtifactRoutes serves backtest/tuning/live artifacts (equity curve
// SVGs, trade blotters, boundary charts) read-only, directly off disk under
// the process-wide artifacts root.
func (s *Server) mountArtifactRoutes(r chi.Router) {
	artifactsRoot := s.cfg.Cfg.ArtifactsDir()
	fileServer := http.StripPrefix("/v1/artifacts", http.FileServer(http.Dir(artifactsRoot)))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "..") {
			s.writeError(w, r, errkind.New(errkind.NotFound, "artifact path not found"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
