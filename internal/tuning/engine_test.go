package tuning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thresholdStrategySource = `
function prepare(dataBundle, context) { return {}; }
function generate_signals(frame, state, context) {
  var threshold = (context.tuning_params && context.tuning_params.threshold) || 0;
  if (threshold <= 50) {
    return [{symbol: "AAA", signal: "buy", strength: 0.8, reason_code: "threshold"}];
  }
  return [];
}
function risk_rules(positions, context) { return {}; }
`

func TestRunTuningOnlyPlanReturnsPreviewWithoutTrials(t *testing.T) {
	e, analyticsStore := newTestEngine(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 100)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 110)

	result, err := e.Run(context.Background(), Request{
		StrategyName: "thresh", SourceCode: thresholdStrategySource, Universe: []string{"AAA"},
		StartDate: "2024-01-01", EndDate: "2024-01-02", InitialCapital: 10000,
		SearchSpace: map[string]interface{}{
			"threshold": map[string]interface{}{"type": "int", "min": 0.0, "max": 100.0, "step": 25.0},
		},
		OnlyPlan: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "planned", result.Status)
	require.Len(t, result.CandidatePlan, 1)
	assert.Equal(t, "threshold", result.CandidatePlan[0].Parameter)
	assert.Empty(t, result.EvaluatedCandidates)
	assert.Nil(t, result.BestCandidate)
}

func TestRunTuningCompletesAndPersistsBestCandidate(t *testing.T) {
	e, analyticsStore := newTestEngine(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 100)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 110)

	result, err := e.Run(context.Background(), Request{
		StrategyName: "thresh", SourceCode: thresholdStrategySource, Universe: []string{"AAA"},
		StartDate: "2024-01-01", EndDate: "2024-01-02", InitialCapital: 10000,
		TimeoutSeconds: 5, MemoryMB: 128, CPUSeconds: 2,
		SearchSpace: map[string]interface{}{
			"threshold": []interface{}{0.0, 100.0},
		},
		Objective: map[string]interface{}{"metric": "total_return", "maximize": true},
		MaxTrials: 10, MaxLayers: 1, HasRandomSeed: true, RandomSeed: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 2, result.TrialsAttempted)
	require.NotNil(t, result.BestCandidate)
	assert.Equal(t, 0.0, result.BestCandidate.Params["threshold"])
	assert.NotEmpty(t, result.TuningRunID)
	require.Contains(t, result.Sensitivity, "threshold")
	assert.Equal(t, "ok", result.Sensitivity["threshold"].Status)
	assert.Equal(t, 1, result.SensitivitySummary.ParameterCount)
}

func TestRunTuningRejectsEmptySearchSpace(t *testing.T) {
	e, analyticsStore := newTestEngine(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 100)

	_, err := e.Run(context.Background(), Request{
		StrategyName: "thresh", SourceCode: thresholdStrategySource, Universe: []string{"AAA"},
		StartDate: "2024-01-01", EndDate: "2024-01-02", InitialCapital: 10000,
		SearchSpace: map[string]interface{}{},
	})
	assert.Error(t, err)
}

func TestRunTuningRejectsEmptyUniverse(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Run(context.Background(), Request{
		StrategyName: "thresh", SourceCode: thresholdStrategySource, Universe: nil,
		StartDate: "2024-01-01", EndDate: "2024-01-02", InitialCapital: 10000,
		SearchSpace: map[string]interface{}{"threshold": []interface{}{0.0, 100.0}},
	})
	assert.Error(t, err)
}
