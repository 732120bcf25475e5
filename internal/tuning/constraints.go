package tuning

import (
	"fmt"
	"math"
)

// Constraints are the optional guards applied during a tuning run: a
// pre-run domain-invariant check on the candidate parameters themselves,
// and post-hoc limits checked against the candidate's realized metrics.
type Constraints struct {
	MaxDrawdownLimit *float64
	TurnoverCap      *int
}

// checkDomainConstraints rejects parameter combinations that violate
// invariants any strategy would rely on, when the relevant parameter names
// happen to be present in the search space. A candidate that declares
// short_window/long_window must keep short strictly below long; one that
// declares max_positions must not allow fewer position slots than the
// universe it trades.
func checkDomainConstraints(params map[string]interface{}, universeSize int) (bool, string) {
	if shortRaw, ok := params["short_window"]; ok {
		if longRaw, ok2 := params["long_window"]; ok2 {
			shortV, shortOK := toFloat64(shortRaw)
			longV, longOK := toFloat64(longRaw)
			if shortOK && longOK && shortV >= longV {
				return false, "short_window must be less than long_window"
			}
		}
	}
	if maxPosRaw, ok := params["max_positions"]; ok {
		if maxPos, ok := toFloat64(maxPosRaw); ok && float64(universeSize) > maxPos {
			return false, "max_positions is smaller than the universe being traded"
		}
	}
	return true, ""
}

// checkMetricConstraints applies the post-hoc limits against a candidate's
// realized metrics. A nil limit in Constraints disables that check.
func checkMetricConstraints(metrics map[string]float64, constraints Constraints) (bool, string) {
	if constraints.MaxDrawdownLimit != nil {
		if drawdown, ok := metrics["max_drawdown"]; ok && math.Abs(drawdown) > *constraints.MaxDrawdownLimit {
			return false, fmt.Sprintf("max_drawdown_limit exceeded: |%.6f| > %.6f", drawdown, *constraints.MaxDrawdownLimit)
		}
	}
	if constraints.TurnoverCap != nil {
		if tradeCount, ok := metrics["trade_count"]; ok && int(tradeCount) > *constraints.TurnoverCap {
			return false, fmt.Sprintf("turnover_cap exceeded: %d > %d", int(tradeCount), *constraints.TurnoverCap)
		}
	}
	return true, ""
}
