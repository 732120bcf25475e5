package backtest

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buyAAAStrategySource = `
function prepare(dataBundle, context) { return {}; }
function generate_signals(frame, state, context) {
  return [{symbol: "AAA", signal: "buy", strength: 0.9, reason_code: "momentum"}];
}
function risk_rules(positions, context) { return {max_positions: 2}; }
`

const flatStrategySource = `
function prepare(dataBundle, context) { return {}; }
function generate_signals(frame, state, context) { return []; }
function risk_rules(positions, context) { return {}; }
`

func TestRunCodeStrategyBacktestProducesMonotoneEquityForActiveSymbol(t *testing.T) {
	e := newTestEngine(t)
	seedOHLCV(t, e.analytics, "AAA", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 100)
	seedOHLCV(t, e.analytics, "AAA", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 110)
	seedOHLCV(t, e.analytics, "BBB", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 50)
	seedOHLCV(t, e.analytics, "BBB", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 45)

	result, err := e.Run(context.Background(), Request{
		StrategyName: "momentum", SourceCode: buyAAAStrategySource,
		Universe: []string{"AAA", "BBB"}, StartDate: "2024-01-01", EndDate: "2024-01-02",
		InitialCapital: 100000, TimeoutSeconds: 5, MemoryMB: 128, CPUSeconds: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SignalsCount)
	assert.Equal(t, 2, result.Metrics.TradeCount)
	assert.Greater(t, result.Metrics.FinalEquity, 100000.0)
	assert.NotEmpty(t, result.WorldManifestID)
	for _, p := range []string{result.Artifacts.EquityCurvePath, result.Artifacts.DrawdownPath, result.Artifacts.TradeBlotterPath, result.Artifacts.SignalContextPath} {
		_, statErr := os.Stat(p)
		assert.NoError(t, statErr, "expected artifact at %s", p)
	}
}

func TestRunCodeStrategyBacktestWithNoBuySignalsIsFlat(t *testing.T) {
	e := newTestEngine(t)
	seedOHLCV(t, e.analytics, "AAA", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 100)
	seedOHLCV(t, e.analytics, "AAA", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 110)

	result, err := e.Run(context.Background(), Request{
		StrategyName: "flat", SourceCode: flatStrategySource,
		Universe: []string{"AAA"}, StartDate: "2024-01-01", EndDate: "2024-01-02",
		InitialCapital: 50000, TimeoutSeconds: 5, MemoryMB: 128, CPUSeconds: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Metrics.TradeCount)
	assert.Equal(t, 50000.0, result.Metrics.FinalEquity)
}

func TestRunCodeStrategyBacktestRejectsEmptyUniverse(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Run(context.Background(), Request{
		StrategyName: "x", SourceCode: flatStrategySource, Universe: nil,
		StartDate: "2024-01-01", EndDate: "2024-01-02", InitialCapital: 1000,
	})
	assert.Error(t, err)
}

func TestRunCodeStrategyBacktestRejectsNonPositiveCapital(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Run(context.Background(), Request{
		StrategyName: "x", SourceCode: flatStrategySource, Universe: []string{"AAA"},
		StartDate: "2024-01-01", EndDate: "2024-01-02", InitialCapital: 0,
	})
	assert.Error(t, err)
}
