package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitivityAnalysisFindsBestRivalDifferingInOneParam(t *testing.T) {
	best := Candidate{RunID: "best", Params: map[string]interface{}{"a": 1.0, "b": "x"}, Score: 1.0}
	evaluated := []Candidate{
		best,
		{RunID: "rival-good", Params: map[string]interface{}{"a": 2.0, "b": "x"}, Score: 1.5},
		{RunID: "rival-bad", Params: map[string]interface{}{"a": 3.0, "b": "x"}, Score: 0.5},
		{RunID: "off-context", Params: map[string]interface{}{"a": 4.0, "b": "y"}, Score: 5.0},
	}

	sensitivity := sensitivityAnalysis(evaluated, best)
	require.Contains(t, sensitivity, "a")
	entry := sensitivity["a"]
	assert.Equal(t, "ok", entry.Status)
	assert.Equal(t, "rival-good", entry.AlternativeRunID)
	assert.InDelta(t, 0.5, entry.ScoreDelta, 1e-9)

	bEntry := sensitivity["b"]
	assert.Equal(t, "insufficient_local_samples", bEntry.Status)
}

func TestParamsEqualComparesNumericallyAcrossTypes(t *testing.T) {
	assert.True(t, paramsEqual(1.0, 1))
	assert.False(t, paramsEqual(1.0, 2.0))
	assert.True(t, paramsEqual("x", "x"))
}

func TestSummarizeSensitivityAveragesOnlyOkEntries(t *testing.T) {
	entries := map[string]SensitivityEntry{
		"a": {Status: "ok", ScoreDelta: 0.1},
		"b": {Status: "ok", ScoreDelta: 0.3},
		"c": {Status: "insufficient_local_samples"},
	}
	summary := summarizeSensitivity(entries)
	assert.Equal(t, 2, summary.ParameterCount)
	assert.InDelta(t, 0.2, summary.MeanScoreDelta, 1e-9)
	assert.InDelta(t, 0.1414213562, summary.StdDevScoreDelta, 1e-6)
}

func TestSummarizeSensitivityHandlesNoOkEntries(t *testing.T) {
	summary := summarizeSensitivity(map[string]SensitivityEntry{
		"a": {Status: "insufficient_local_samples"},
	})
	assert.Equal(t, SensitivitySummary{}, summary)
}
