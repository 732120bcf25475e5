package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/sentinel/internal/live"
)

func (s *Server) mountLiveRoutes(r chi.Router) {
	r.Post("/snapshot", s.handleBuildLiveSnapshot)
	r.Get("/state/{strategyVersionID}", s.handleGetLiveState)
	r.Get("/insights/{strategyVersionID}", s.handleListLiveInsights)
	r.Get("/stream/{strategyID}", s.handleLiveSnapshotStream)
}

type liveSnapshotRequest struct {
	StrategyID     string  `json:"strategy_id"`
	LookbackDays   int     `json:"lookback_days"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	MemoryMB       int64   `json:"memory_mb"`
	CPUSeconds     int64   `json:"cpu_seconds"`
}

func (s *Server) handleBuildLiveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req liveSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snapshot, err := s.cfg.Live.BuildSnapshot(r.Context(), live.Request{
		StrategyID: req.StrategyID, LookbackDays: req.LookbackDays,
		TimeoutSeconds: req.TimeoutSeconds, MemoryMB: req.MemoryMB, CPUSeconds: req.CPUSeconds,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleGetLiveState(w http.ResponseWriter, r *http.Request) {
	strategyVersionID := chi.URLParam(r, "strategyVersionID")
	state, err := s.cfg.StateStore.GetLiveState(strategyVersionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleListLiveInsights(w http.ResponseWriter, r *http.Request) {
	strategyVersionID := chi.URLParam(r, "strategyVersionID")
	insights, err := s.cfg.StateStore.ListLiveInsights(strategyVersionID, 100)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, insights)
}

const liveSnapshotPushInterval = 15 * time.Second

// handleLiveSnapshotStream upgrades to a WebSocket and pushes a fresh
// boundary-distance snapshot for the strategy every liveSnapshotPushInterval,
// so a dashboard can stay current without polling. One bad snapshot build
// closes the connection rather than leaving the client stuck on stale data.
func (s *Server) handleLiveSnapshotStream(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "strategyID")
	lookbackDays := 90
	if raw := r.URL.Query().Get("lookback_days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			lookbackDays = parsed
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.cfg.Log.Warn().Err(err).Str("strategy_id", strategyID).Msg("failed to accept live snapshot websocket")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(liveSnapshotPushInterval)
	defer ticker.Stop()

	push := func() bool {
		snapshot, err := s.cfg.Live.BuildSnapshot(ctx, live.Request{StrategyID: strategyID, LookbackDays: lookbackDays})
		if err != nil {
			s.cfg.Log.Warn().Err(err).Str("strategy_id", strategyID).Msg("live snapshot stream build failed")
			return false
		}
		body, err := json.Marshal(snapshot)
		if err != nil {
			return false
		}
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return conn.Write(writeCtx, websocket.MessageText, body) == nil
	}

	if !push() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}
