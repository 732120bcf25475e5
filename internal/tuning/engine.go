// Package tuning implements the layered grid-search tuning engine (C8):
// given a user-declared search space over a code strategy's tuning
// parameters, it evaluates successive narrowing "layers" of candidates
// through the backtest engine, scores each against a caller-chosen
// objective, and reports the winning candidate alongside a per-parameter
// sensitivity breakdown.
package tuning

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultMaxLayers = 3
	defaultKeepTop   = 3
	defaultMaxTrials = 60
)

// Engine runs tuning sweeps over a code strategy.
type Engine struct {
	backtest *backtest.Engine
	store    *store.Store
	log      zerolog.Logger
}

// New creates a tuning Engine around an already-wired backtest Engine.
func New(backtestEngine *backtest.Engine, stateStore *store.Store, log zerolog.Logger) *Engine {
	return &Engine{backtest: backtestEngine, store: stateStore, log: log.With().Str("component", "tuning").Logger()}
}

// Request is the input to Run.
type Request struct {
	StrategyID     string
	StrategyName   string
	SourceCode     string
	Universe       []string
	StartDate      string
	EndDate        string
	InitialCapital float64
	TimeoutSeconds float64
	MemoryMB       int64
	CPUSeconds     int64

	SearchSpace map[string]interface{}
	Objective   map[string]interface{}

	MaxTrials         int
	MaxLayers         int
	KeepTop           int
	MaxTrialsPerLayer int

	Constraints Constraints

	RandomSeed    int64
	HasRandomSeed bool

	OnlyPlan bool

	// ProgressCallback, if set, is invoked with small JSON-able event
	// payloads as the sweep advances (plan ready, layer started/finished,
	// candidate evaluated).
	ProgressCallback func(event string, payload map[string]interface{})
}

// Candidate is one evaluated parameter combination.
type Candidate struct {
	RunID       string                 `json:"run_id"`
	Params      map[string]interface{} `json:"params"`
	Metrics     map[string]float64     `json:"metrics"`
	Score       float64                `json:"score"`
	ScoreMetric string                  `json:"score_metric"`
	Layer       int                    `json:"layer"`
}

// LayerDecision records why a layer ran (or stopped) the way it did.
type LayerDecision struct {
	Layer          string `json:"layer"`
	Enabled        bool   `json:"enabled"`
	Reason         string `json:"reason"`
	CandidateCount int    `json:"candidate_count"`
	Kept           int    `json:"kept"`
}

// CandidatePlanEntry previews how many candidate values a parameter would
// take at layer 0, without running any backtests.
type CandidatePlanEntry struct {
	Parameter    string        `json:"parameter"`
	Kind         string        `json:"kind"`
	SampleCount  int           `json:"sample_count"`
	SampleValues []interface{} `json:"sample_values"`
}

// Result is the outcome of a tuning run.
type Result struct {
	Status              string                       `json:"status"`
	TuningRunID         string                       `json:"tuning_run_id,omitempty"`
	Objective           Objective                    `json:"objective"`
	CandidatePlan       []CandidatePlanEntry          `json:"candidate_plan"`
	EvaluatedCandidates []Candidate                   `json:"evaluated_candidates,omitempty"`
	BestCandidate       *Candidate                    `json:"best_candidate,omitempty"`
	LayerDecisions      []LayerDecision                `json:"layer_decisions,omitempty"`
	TrialsAttempted     int                            `json:"trials_attempted"`
	TrialsRequested     int                            `json:"trials_requested"`
	Sensitivity         map[string]SensitivityEntry     `json:"sensitivity,omitempty"`
	SensitivitySummary  SensitivitySummary              `json:"sensitivity_summary"`
}

// Run executes a layered grid search: parse the search space and
// objective, build a candidate-count preview, and (unless only_plan was
// requested) sweep layers of candidates through the backtest engine until
// max_trials is spent or a layer produces nothing new.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "universe must not be empty")
	}
	if req.InitialCapital <= 0 {
		return nil, errkind.New(errkind.Invalid, "initial_capital must be positive")
	}

	objective, err := parseObjective(req.Objective)
	if err != nil {
		return nil, err
	}
	specs, err := parseSearchSpace(req.SearchSpace)
	if err != nil {
		return nil, err
	}

	maxLayers := req.MaxLayers
	if maxLayers <= 0 {
		maxLayers = defaultMaxLayers
	}
	keepTop := req.KeepTop
	if keepTop <= 0 {
		keepTop = defaultKeepTop
	}
	maxTrials := req.MaxTrials
	if maxTrials <= 0 {
		maxTrials = defaultMaxTrials
	}

	candidatePlan := make([]CandidatePlanEntry, 0, len(specs))
	for _, spec := range specs {
		values, err := candidateValuesFromAnchor(spec, 0, nil)
		if err != nil {
			return nil, err
		}
		sampleValues := values
		if len(sampleValues) > 12 {
			sampleValues = sampleValues[:12]
		}
		candidatePlan = append(candidatePlan, CandidatePlanEntry{
			Parameter: spec.Name, Kind: spec.Kind, SampleCount: len(values), SampleValues: sampleValues,
		})
	}

	e.emit(req, "tuning.plan.ready", map[string]interface{}{"parameters": len(specs), "max_trials": maxTrials})

	if req.OnlyPlan {
		return &Result{
			Status: "planned", Objective: *objective, CandidatePlan: candidatePlan, TrialsRequested: maxTrials,
		}, nil
	}

	seed := req.RandomSeed
	if !req.HasRandomSeed {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var (
		evaluated      []Candidate
		layerDecisions []LayerDecision
		best           *Candidate
		anchors        []map[string]interface{}
	)
	seenKeys := make(map[string]bool)
	remaining := maxTrials
	universeSize := len(req.Universe)

	for layer := 0; layer < maxLayers && remaining > 0; layer++ {
		candidates, err := generateParamGrid(specs, layer, anchors)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}
		if req.MaxTrialsPerLayer > 0 && len(candidates) > req.MaxTrialsPerLayer {
			candidates = candidates[:req.MaxTrialsPerLayer]
		}
		shuffleCandidates(rng, candidates)

		selected := make([]map[string]interface{}, 0, len(candidates))
		for _, c := range candidates {
			key := candidateKey(c)
			if seenKeys[key] {
				continue
			}
			seenKeys[key] = true
			selected = append(selected, c)
			if len(selected) >= remaining {
				break
			}
		}
		if len(selected) == 0 {
			break
		}

		e.emit(req, "tuning.layer.started", map[string]interface{}{"layer": layer, "candidates": len(selected)})

		var layerResults []Candidate
		for idx, params := range selected {
			if ok, reason := checkDomainConstraints(params, universeSize); !ok {
				e.emit(req, "tuning.candidate.rejected", map[string]interface{}{"layer": layer, "params": params, "reason": reason})
				continue
			}

			result, err := e.backtest.Run(ctx, backtest.Request{
				StrategyID: req.StrategyID, StrategyName: trialName(req.StrategyName, layer, idx), SourceCode: req.SourceCode,
				Universe: req.Universe, StartDate: req.StartDate, EndDate: req.EndDate, InitialCapital: req.InitialCapital,
				TimeoutSeconds: req.TimeoutSeconds, MemoryMB: req.MemoryMB, CPUSeconds: req.CPUSeconds,
				TuningParams: params,
			})
			if err != nil {
				e.emit(req, "tuning.candidate.failed", map[string]interface{}{"layer": layer, "params": params, "error": err.Error()})
				continue
			}

			metrics := metricsToMap(result.Metrics)
			if ok, reason := checkMetricConstraints(metrics, req.Constraints); !ok {
				e.emit(req, "tuning.candidate.rejected", map[string]interface{}{"layer": layer, "params": params, "reason": reason})
				continue
			}

			score, scoreMetric, err := scoreCandidate(metrics, objective)
			if err != nil {
				e.emit(req, "tuning.candidate.failed", map[string]interface{}{"layer": layer, "params": params, "error": err.Error()})
				continue
			}

			candidate := Candidate{RunID: result.RunID, Params: params, Metrics: metrics, Score: score, ScoreMetric: scoreMetric, Layer: layer}
			evaluated = append(evaluated, candidate)
			layerResults = append(layerResults, candidate)
			remaining--

			e.emit(req, "tuning.candidate.evaluated", map[string]interface{}{"layer": layer, "run_id": result.RunID, "score": score})

			if remaining <= 0 {
				break
			}
		}

		if len(layerResults) == 0 {
			layerDecisions = append(layerDecisions, LayerDecision{
				Layer: layerName(layer), Enabled: false, Reason: "no candidates survived constraints or scoring",
				CandidateCount: len(selected), Kept: 0,
			})
			break
		}

		sort.Slice(layerResults, func(i, j int) bool { return layerResults[i].Score > layerResults[j].Score })
		kept := layerResults
		if len(kept) > keepTop {
			kept = kept[:keepTop]
		}
		anchors = make([]map[string]interface{}, len(kept))
		for i, c := range kept {
			anchors[i] = c.Params
		}

		layerDecisions = append(layerDecisions, LayerDecision{
			Layer: layerName(layer), Enabled: true,
			Reason:         "evaluated candidates and retained the top scorers as next-layer anchors",
			CandidateCount: len(selected), Kept: len(kept),
		})

		if best == nil || kept[0].Score > best.Score {
			bestCopy := kept[0]
			best = &bestCopy
		}

		e.emit(req, "tuning.layer.completed", map[string]interface{}{"layer": layer, "kept": len(kept), "best_score": best.Score})
	}

	if best == nil {
		return nil, errkind.New(errkind.Invalid, "tuning run produced no successful candidates").
			WithRemediation("widen the search space or relax constraints and retry")
	}

	sensitivity := sensitivityAnalysis(evaluated, *best)

	tuningRunID := uuid.NewString()
	if err := e.persist(tuningRunID, req, objective, candidatePlan, evaluated, layerDecisions, *best, sensitivity); err != nil {
		return nil, err
	}

	if err := e.store.AppendAuditEvent("", "tuning.run", map[string]interface{}{
		"tuning_run_id": tuningRunID, "strategy_name": req.StrategyName,
		"trials_attempted": len(evaluated), "best_run_id": best.RunID, "best_score": best.Score,
	}); err != nil {
		e.log.Warn().Err(err).Msg("failed to append tuning audit event")
	}

	return &Result{
		Status: "completed", TuningRunID: tuningRunID, Objective: *objective, CandidatePlan: candidatePlan,
		EvaluatedCandidates: evaluated, BestCandidate: best, LayerDecisions: layerDecisions,
		TrialsAttempted: len(evaluated), TrialsRequested: maxTrials, Sensitivity: sensitivity,
		SensitivitySummary: summarizeSensitivity(sensitivity),
	}, nil
}

func (e *Engine) persist(tuningRunID string, req Request, objective *Objective, plan []CandidatePlanEntry,
	evaluated []Candidate, layers []LayerDecision, best Candidate, sensitivity map[string]SensitivityEntry) error {

	evaluatedPayload := make([]interface{}, len(evaluated))
	for i, c := range evaluated {
		evaluatedPayload[i] = map[string]interface{}{
			"run_id": c.RunID, "params": c.Params, "metrics": c.Metrics, "score": c.Score,
			"score_metric": c.ScoreMetric, "layer": c.Layer,
		}
	}
	layerPayload := make([]interface{}, len(layers))
	for i, l := range layers {
		layerPayload[i] = map[string]interface{}{
			"layer": l.Layer, "enabled": l.Enabled, "reason": l.Reason,
			"candidate_count": l.CandidateCount, "kept": l.Kept,
		}
	}

	payload := map[string]interface{}{
		"strategy_name":        req.StrategyName,
		"objective":            objective,
		"candidate_plan":       plan,
		"evaluated_candidates": evaluatedPayload,
		"tuning_plan":          map[string]interface{}{"layers": layerPayload},
		"best_candidate": map[string]interface{}{
			"run_id": best.RunID, "params": best.Params, "metrics": best.Metrics, "score": best.Score,
		},
		"sensitivity": sensitivity,
	}
	return e.store.SaveTuningRun(tuningRunID, req.StrategyName, payload)
}

func (e *Engine) emit(req Request, event string, payload map[string]interface{}) {
	if req.ProgressCallback == nil {
		return
	}
	req.ProgressCallback(event, payload)
}

func metricsToMap(m backtest.Metrics) map[string]float64 {
	return map[string]float64{
		"final_equity": m.FinalEquity, "total_return": m.TotalReturn, "cagr": m.CAGR,
		"sharpe": m.Sharpe, "max_drawdown": m.MaxDrawdown, "trade_count": float64(m.TradeCount),
	}
}

func shuffleCandidates(rng *rand.Rand, candidates []map[string]interface{}) {
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
}

func layerName(layer int) string {
	return "layer_" + strconv.Itoa(layer)
}

func trialName(strategyName string, layer, idx int) string {
	return strategyName + "-l" + strconv.Itoa(layer) + "-t" + strconv.Itoa(idx)
}
