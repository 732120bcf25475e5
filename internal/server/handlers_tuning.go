package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/queue"
	"github.com/aristath/sentinel/internal/tuning"
)

func (s *Server) mountTuningRoutes(r chi.Router) {
	r.Post("/", s.handleRunTuning)
	r.Get("/{tuningRunID}/trials", s.handleListTuningTrials)
	r.Get("/{tuningRunID}/layers", s.handleListTuningLayerDecisions)
}

type tuningRequest struct {
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

	SearchSpace map[string]interface{} `json:"search_space"`
	Objective   map[string]interface{} `json:"objective"`

	MaxTrials         int                  `json:"max_trials"`
	MaxLayers         int                  `json:"max_layers"`
	KeepTop           int                  `json:"keep_top"`
	MaxTrialsPerLayer int                  `json:"max_trials_per_layer"`
	Constraints       tuning.Constraints   `json:"constraints"`
	RandomSeed        *int64               `json:"random_seed"`
	OnlyPlan          bool                 `json:"only_plan"`
	Async             bool                 `json:"async"`
}

func (req tuningRequest) toEngineRequest() tuning.Request {
	out := tuning.Request{
		StrategyID: req.StrategyID, StrategyName: req.StrategyName, SourceCode: req.SourceCode,
		Universe: req.Universe, StartDate: req.StartDate, EndDate: req.EndDate,
		InitialCapital: req.InitialCapital, TimeoutSeconds: req.TimeoutSeconds,
		MemoryMB: req.MemoryMB, CPUSeconds: req.CPUSeconds,
		SearchSpace: req.SearchSpace, Objective: req.Objective,
		MaxTrials: req.MaxTrials, MaxLayers: req.MaxLayers, KeepTop: req.KeepTop,
		MaxTrialsPerLayer: req.MaxTrialsPerLayer, Constraints: req.Constraints, OnlyPlan: req.OnlyPlan,
	}
	if req.RandomSeed != nil {
		out.RandomSeed = *req.RandomSeed
		out.HasRandomSeed = true
	}
	return out
}

func (s *Server) handleRunTuning(w http.ResponseWriter, r *http.Request) {
	var req tuningRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		s.writeError(w, r, errkind.Wrap(errkind.Invalid, err, "failed to marshal tuning request"))
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.writeError(w, r, errkind.Wrap(errkind.Invalid, err, "failed to marshal tuning request"))
		return
	}

	s.submitOrRun(w, r, queue.JobTypeTuningRun, payload, req.Async, func() (interface{}, error) {
		return s.cfg.Tuning.Run(r.Context(), req.toEngineRequest())
	})
}

func (s *Server) handleListTuningTrials(w http.ResponseWriter, r *http.Request) {
	tuningRunID := chi.URLParam(r, "tuningRunID")
	trials, err := s.cfg.StateStore.ListTuningTrials(tuningRunID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trials)
}

func (s *Server) handleListTuningLayerDecisions(w http.ResponseWriter, r *http.Request) {
	tuningRunID := chi.URLParam(r, "tuningRunID")
	decisions, err := s.cfg.StateStore.ListTuningLayerDecisions(tuningRunID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decisions)
}
