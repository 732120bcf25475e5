package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectiveDefaultsToMaximizeSharpe(t *testing.T) {
	obj, err := parseObjective(nil)
	require.NoError(t, err)
	assert.Equal(t, "sharpe", obj.Metric)
	assert.True(t, obj.Maximize)
	assert.Equal(t, 1.0, obj.Weights["sharpe"])
}

func TestParseObjectiveMinimizeFlipsDefaultWeight(t *testing.T) {
	obj, err := parseObjective(map[string]interface{}{"metric": "max_drawdown", "maximize": false})
	require.NoError(t, err)
	assert.Equal(t, -1.0, obj.Weights["max_drawdown"])
}

func TestParseObjectiveRejectsEmptyWeights(t *testing.T) {
	_, err := parseObjective(map[string]interface{}{"weights": map[string]interface{}{}})
	assert.Error(t, err)
}

func TestScoreCandidateSumsWeightedMetrics(t *testing.T) {
	obj := &Objective{Metric: "sharpe", Maximize: true, Weights: map[string]float64{"sharpe": 0.5, "cagr": 0.5}}
	score, used, err := scoreCandidate(map[string]float64{"sharpe": 2.0, "cagr": 0.1}, obj)
	require.NoError(t, err)
	assert.InDelta(t, 1.0+0.05, score, 1e-9)
	assert.Equal(t, "cagr,sharpe", used)
}

func TestScoreCandidateInvertsDrawdownDirection(t *testing.T) {
	obj := &Objective{Metric: "max_drawdown", Maximize: false, Weights: map[string]float64{"max_drawdown": -1.0}}
	score, _, err := scoreCandidate(map[string]float64{"max_drawdown": -0.2}, obj)
	require.NoError(t, err)
	assert.InDelta(t, -0.2, score, 1e-9)

	betterScore, _, err := scoreCandidate(map[string]float64{"max_drawdown": -0.05}, obj)
	require.NoError(t, err)
	assert.Greater(t, betterScore, score)
}

func TestScoreCandidateFailsWhenNoWeightedMetricPresent(t *testing.T) {
	obj := &Objective{Weights: map[string]float64{"sharpe": 1.0}}
	_, _, err := scoreCandidate(map[string]float64{"cagr": 0.1}, obj)
	assert.Error(t, err)
}
