package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountSessionRoutes(r chi.Router) {
	r.Post("/snapshot", s.handleSessionSnapshot)
	r.Get("/{sessionID}/rehydrate", s.handleSessionRehydrate)
	r.Get("/{sessionID}/diff", s.handleSessionDiff)
	r.Post("/tool-delta", s.handleSessionToolDelta)
}

type sessionSnapshotRequest struct {
	SessionID string                 `json:"session_id"`
	State     map[string]interface{} `json:"state"`
}

func (s *Server) handleSessionSnapshot(w http.ResponseWriter, r *http.Request) {
	var req sessionSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snapshot, err := s.cfg.Session.Snapshot(req.SessionID, req.State)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleSessionRehydrate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	result, err := s.cfg.Session.Rehydrate(sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionDiff(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	result, err := s.cfg.Session.Diff(sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type sessionToolDeltaRequest struct {
	SessionID string                 `json:"session_id"`
	ToolName  string                 `json:"tool_name"`
	Before    map[string]interface{} `json:"before"`
	After     map[string]interface{} `json:"after"`
}

func (s *Server) handleSessionToolDelta(w http.ResponseWriter, r *http.Request) {
	var req sessionToolDeltaRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	delta, err := s.cfg.Session.RecordToolDelta(req.SessionID, req.ToolName, req.Before, req.After)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, delta)
}

// handleContextDelta returns the same diff of a session's two most recent
// state snapshots as /session/{id}/diff, with the id taken from ?session_id=...
func (s *Server) handleContextDelta(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	result, err := s.cfg.Session.Diff(sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
