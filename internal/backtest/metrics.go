package backtest

import (
	"math"

	"github.com/aristath/sentinel/internal/errkind"
)

// Metrics is the outcome of compute_backtest_metrics: the single routine
// both the code-strategy and the (future) indicator-strategy backtest
// variants share.
type Metrics struct {
	FinalEquity float64 `json:"final_equity"`
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TradeCount  int     `json:"trade_count"`
}

// computeMetrics requires at least 2 equity points, each strictly positive
// except possibly the last. Sharpe annualizes over 252 trading days;
// max_drawdown is reported as a non-positive fraction.
func computeMetrics(equityByDay []float64, tradeCount int) (*Metrics, error) {
	if len(equityByDay) < 2 {
		return nil, errkind.New(errkind.Invalid, "need at least 2 points to compute metrics")
	}

	returns := make([]float64, 0, len(equityByDay)-1)
	for i := 1; i < len(equityByDay); i++ {
		prev := equityByDay[i-1]
		curr := equityByDay[i]
		if prev <= 0 {
			return nil, errkind.New(errkind.Invalid, "equity became non-positive; metrics invalid")
		}
		returns = append(returns, (curr-prev)/prev)
	}

	initial := equityByDay[0]
	final := equityByDay[len(equityByDay)-1]
	totalReturn := (final / initial) - 1.0
	years := math.Max(float64(len(equityByDay)-1)/252.0, 1.0/252.0)
	cagr := math.Pow(final/initial, 1.0/years) - 1.0

	meanRet, stdDev := populationMeanStdDev(returns)

	sharpe := 0.0
	if stdDev != 0 {
		sharpe = (meanRet / stdDev) * math.Sqrt(252.0)
	}

	peak := equityByDay[0]
	maxDrawdown := 0.0
	for _, v := range equityByDay {
		if v > peak {
			peak = v
		}
		drawdown := (v / peak) - 1.0
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return &Metrics{
		FinalEquity: final,
		TotalReturn: totalReturn,
		CAGR:        cagr,
		Sharpe:      sharpe,
		MaxDrawdown: maxDrawdown,
		TradeCount:  tradeCount,
	}, nil
}

// populationMeanStdDev computes mean and population (÷n, not ÷(n-1))
// standard deviation, matching the reference metrics routine exactly: a
// single return yields stdDev=0 (and so sharpe=0), never NaN.
func populationMeanStdDev(returns []float64) (mean, stdDev float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return mean, math.Sqrt(variance)
}

// drawdownSeries returns the running (value/peak - 1) series, used for the
// drawdown chart artifact.
func drawdownSeries(equityByDay []float64) []float64 {
	out := make([]float64, len(equityByDay))
	peak := equityByDay[0]
	for i, v := range equityByDay {
		if v > peak {
			peak = v
		}
		out[i] = (v / peak) - 1.0
	}
	return out
}
