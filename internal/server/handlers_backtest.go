package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/queue"
)

func (s *Server) mountBacktestRoutes(r chi.Router) {
	r.Post("/", s.handleRunBacktest)
	r.Get("/{runID}", s.handleGetBacktestRun)
	r.Get("/compare", s.handleCompareBacktestRuns)
}

type backtestRequest struct {
	StrategyID     string                 `json:"strategy_id"`
	StrategyName   string                 `json:"strategy_name"`
	SourceCode     string                 `json:"source_code"`
	Universe       []string               `json:"universe"`
	StartDate      string                 `json:"start_date"`
	EndDate        string                 `json:"end_date"`
	InitialCapital float64                `json:"initial_capital"`
	TimeoutSeconds float64                `json:"timeout_seconds"`
	MemoryMB       int64                  `json:"memory_mb"`
	CPUSeconds     int64                  `json:"cpu_seconds"`
	TuningParams   map[string]interface{} `json:"tuning_params"`
	Async          bool                   `json:"async"`
}

func (req backtestRequest) toEngineRequest() backtest.Request {
	return backtest.Request{
		StrategyID: req.StrategyID, StrategyName: req.StrategyName, SourceCode: req.SourceCode,
		Universe: req.Universe, StartDate: req.StartDate, EndDate: req.EndDate,
		InitialCapital: req.InitialCapital, TimeoutSeconds: req.TimeoutSeconds,
		MemoryMB: req.MemoryMB, CPUSeconds: req.CPUSeconds, TuningParams: req.TuningParams,
	}
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	payload, err := backtestJobPayload(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.submitOrRun(w, r, queue.JobTypeCodeStrategyBacktest, payload, req.Async, func() (interface{}, error) {
		return s.cfg.Backtest.Run(r.Context(), req.toEngineRequest())
	})
}

func backtestJobPayload(req backtestRequest) (map[string]interface{}, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "failed to marshal backtest request")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "failed to marshal backtest request")
	}
	return payload, nil
}

func (s *Server) handleGetBacktestRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.cfg.StateStore.GetBacktestRun(runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleCompareBacktestRuns answers ?run_id=a&run_id=b with both runs'
// metrics side by side; the comparison surface itself is left to the
// caller (the response carries the two full metrics payloads, not a
// precomputed delta).
func (s *Server) handleCompareBacktestRuns(w http.ResponseWriter, r *http.Request) {
	runIDs := r.URL.Query()["run_id"]
	if len(runIDs) < 2 {
		s.writeError(w, r, errkind.New(errkind.Invalid, "at least two run_id query params are required"))
		return
	}

	runs := make([]*compareEntry, 0, len(runIDs))
	for _, id := range runIDs {
		run, err := s.cfg.StateStore.GetBacktestRun(id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var metrics map[string]interface{}
		if err := json.Unmarshal([]byte(run.MetricsJSON), &metrics); err != nil {
			s.writeError(w, r, errkind.Wrap(errkind.Internal, err, "failed to parse stored metrics"))
			return
		}
		runs = append(runs, &compareEntry{RunID: run.RunID, StrategyVersionID: run.StrategyVersionID, WorldManifestID: run.WorldManifestID, Metrics: metrics})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

type compareEntry struct {
	RunID             string                 `json:"run_id"`
	StrategyVersionID string                 `json:"strategy_version_id"`
	WorldManifestID   string                 `json:"world_manifest_id"`
	Metrics           map[string]interface{} `json:"metrics"`
}
