package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMetricsMatchesHandRolledExpectation(t *testing.T) {
	equity := []float64{100, 110, 121}
	m, err := computeMetrics(equity, 4)
	require.NoError(t, err)
	assert.InDelta(t, 0.21, m.TotalReturn, 1e-9)
	assert.Equal(t, 121.0, m.FinalEquity)
	assert.Equal(t, 4, m.TradeCount)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}

func TestComputeMetricsFlagsDrawdown(t *testing.T) {
	equity := []float64{100, 120, 90, 95}
	m, err := computeMetrics(equity, 2)
	require.NoError(t, err)
	assert.InDelta(t, (90.0/120.0)-1.0, m.MaxDrawdown, 1e-9)
}

func TestComputeMetricsRejectsFewerThanTwoPoints(t *testing.T) {
	_, err := computeMetrics([]float64{100}, 0)
	assert.Error(t, err)
}

func TestComputeMetricsRejectsNonPositiveEquity(t *testing.T) {
	_, err := computeMetrics([]float64{100, 0, 50}, 0)
	assert.Error(t, err)
}

func TestComputeMetricsSharpeIsZeroWhenReturnsAreFlat(t *testing.T) {
	m, err := computeMetrics([]float64{100, 100, 100}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Sharpe)
}

func TestComputeMetricsSharpeIsZeroNotNaNForSingleReturn(t *testing.T) {
	m, err := computeMetrics([]float64{100, 110}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.False(t, math.IsNaN(m.Sharpe))
}

func TestPopulationMeanStdDevUsesPopulationVarianceNotSampleVariance(t *testing.T) {
	mean, stdDev := populationMeanStdDev([]float64{0.1, 0.2, 0.3})
	assert.InDelta(t, 0.2, mean, 1e-9)
	// Population variance: mean((x-mean)^2) = (0.02+0+0.02)/3, not /2.
	assert.InDelta(t, math.Sqrt(0.02*2.0/3.0), stdDev, 1e-9)
}

func TestDrawdownSeriesTracksRunningPeak(t *testing.T) {
	out := drawdownSeries([]float64{100, 150, 120})
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[1])
	assert.InDelta(t, (120.0/150.0)-1.0, out[2], 1e-9)
}

func TestScaleValuesHandlesFlatSeries(t *testing.T) {
	out := scaleValues([]float64{5, 5, 5}, 0, 10)
	for _, v := range out {
		assert.Equal(t, 5.0, v)
	}
}

func TestScaleValuesInvertsSoLargestIsLow(t *testing.T) {
	out := scaleValues([]float64{0, 100}, 0, 10)
	assert.True(t, math.Abs(out[0]-10) < 1e-9)
	assert.True(t, math.Abs(out[1]-0) < 1e-9)
}
