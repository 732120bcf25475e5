// Package preflight implements the row-count-driven runtime budget
// estimator (C14): before a world-state build, backtest, custom-code run,
// or tuning sweep is allowed to start, its estimated wall-clock cost is
// computed from the number of market rows it will touch (or, for tuning,
// from trial count) and checked against a caller-supplied budget. A run
// whose estimate exceeds the budget is rejected before it starts rather
// than aborted partway through.
package preflight

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

const (
	worldStateSecondsPerRow = 0.0001
	worldStateSecondsPerSym = 0.01
	backtestSecondsPerRow   = 0.0002
	customCodeSecondsPerRow = 0.00035
)

// Estimator computes budget estimates against an open analytics connection.
type Estimator struct {
	conn *sql.DB
}

// New creates an Estimator over an already-open analytics connection.
func New(conn *sql.DB) *Estimator {
	return &Estimator{conn: conn}
}

// Estimate is the outcome of an enforce_*_budget call: the projected cost
// and the budget it was checked against.
type Estimate struct {
	EstimatedSeconds float64 `json:"estimated_seconds"`
	MaxAllowedSeconds float64 `json:"max_allowed_seconds"`
}

func (e *Estimator) countMarketRows(universe []string, startDate, endDate string) (int, error) {
	if len(universe) == 0 {
		return 0, errkind.New(errkind.Invalid, "preflight failed: universe must not be empty")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(universe)), ",")
	args := make([]interface{}, 0, len(universe)+2)
	for _, sym := range universe {
		args = append(args, sym)
	}
	args = append(args, startDate, endDate)

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM market_ohlcv
		WHERE symbol IN (%s)
		  AND DATE(timestamp) BETWEEN DATE(?) AND DATE(?)`, placeholders)

	var rowCount int
	if err := e.conn.QueryRow(query, args...).Scan(&rowCount); err != nil {
		return 0, fmt.Errorf("failed to count market rows: %w", err)
	}
	if rowCount <= 0 {
		return 0, errkind.New(errkind.Invalid, "preflight failed: no rows available for requested range")
	}
	return rowCount, nil
}

// EstimateWorldStateRuntimeSeconds projects world-state build cost as
// row_count * 0.0001 + len(universe) * 0.01.
func (e *Estimator) EstimateWorldStateRuntimeSeconds(universe []string, startDate, endDate string) (float64, error) {
	rowCount, err := e.countMarketRows(universe, startDate, endDate)
	if err != nil {
		return 0, err
	}
	return float64(rowCount)*worldStateSecondsPerRow + float64(len(universe))*worldStateSecondsPerSym, nil
}

// EstimateBacktestRuntimeSeconds projects backtest cost as row_count * 0.0002.
func (e *Estimator) EstimateBacktestRuntimeSeconds(universe []string, startDate, endDate string) (float64, error) {
	rowCount, err := e.countMarketRows(universe, startDate, endDate)
	if err != nil {
		return 0, err
	}
	return float64(rowCount) * backtestSecondsPerRow, nil
}

// EstimateCustomCodeRuntimeSeconds projects custom-code run cost as
// row_count * 0.00035 * complexityMultiplier.
func (e *Estimator) EstimateCustomCodeRuntimeSeconds(universe []string, startDate, endDate string, complexityMultiplier float64) (float64, error) {
	if complexityMultiplier <= 0 {
		return 0, errkind.New(errkind.Invalid, "preflight failed: complexity_multiplier must be positive")
	}
	rowCount, err := e.countMarketRows(universe, startDate, endDate)
	if err != nil {
		return 0, err
	}
	return float64(rowCount) * customCodeSecondsPerRow * complexityMultiplier, nil
}

// EstimateTuningRuntimeSeconds projects tuning cost as
// num_trials * per_trial_estimated_seconds. It touches no market data, so
// it takes no Estimator receiver dependency beyond the package itself.
func EstimateTuningRuntimeSeconds(numTrials int, perTrialEstimatedSeconds float64) (float64, error) {
	if numTrials <= 0 {
		return 0, errkind.New(errkind.Invalid, "preflight failed: num_trials must be positive")
	}
	if perTrialEstimatedSeconds <= 0 {
		return 0, errkind.New(errkind.Invalid, "preflight failed: per_trial_estimated_seconds must be positive")
	}
	return float64(numTrials) * perTrialEstimatedSeconds, nil
}

func checkBudget(estimatedSeconds, maxAllowedSeconds float64) (*Estimate, error) {
	if estimatedSeconds > maxAllowedSeconds {
		return nil, errkind.BudgetExceededf(estimatedSeconds, maxAllowedSeconds)
	}
	return &Estimate{EstimatedSeconds: estimatedSeconds, MaxAllowedSeconds: maxAllowedSeconds}, nil
}

// EnforceWorldStateBudget returns the estimate pair, or a BudgetExceeded
// error, before a world-state build is allowed to start.
func (e *Estimator) EnforceWorldStateBudget(universe []string, startDate, endDate string, maxAllowedSeconds float64) (*Estimate, error) {
	if maxAllowedSeconds <= 0 {
		return nil, errkind.New(errkind.Invalid, "max_allowed_seconds must be positive")
	}
	estimatedSeconds, err := e.EstimateWorldStateRuntimeSeconds(universe, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return checkBudget(estimatedSeconds, maxAllowedSeconds)
}

// EnforceBacktestBudget returns the estimate pair, or a BudgetExceeded
// error, before a backtest is allowed to start.
func (e *Estimator) EnforceBacktestBudget(universe []string, startDate, endDate string, maxAllowedSeconds float64) (*Estimate, error) {
	if maxAllowedSeconds <= 0 {
		return nil, errkind.New(errkind.Invalid, "max_allowed_seconds must be positive")
	}
	estimatedSeconds, err := e.EstimateBacktestRuntimeSeconds(universe, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return checkBudget(estimatedSeconds, maxAllowedSeconds)
}

// EnforceCustomCodeBudget returns the estimate pair, or a BudgetExceeded
// error, before a custom-code run is allowed to start.
func (e *Estimator) EnforceCustomCodeBudget(universe []string, startDate, endDate string, complexityMultiplier, maxAllowedSeconds float64) (*Estimate, error) {
	if maxAllowedSeconds <= 0 {
		return nil, errkind.New(errkind.Invalid, "max_allowed_seconds must be positive")
	}
	estimatedSeconds, err := e.EstimateCustomCodeRuntimeSeconds(universe, startDate, endDate, complexityMultiplier)
	if err != nil {
		return nil, err
	}
	return checkBudget(estimatedSeconds, maxAllowedSeconds)
}

// EnforceTuningBudget returns the estimate pair, or a BudgetExceeded error,
// before a tuning sweep is allowed to start.
func EnforceTuningBudget(numTrials int, perTrialEstimatedSeconds, maxAllowedSeconds float64) (*Estimate, error) {
	if maxAllowedSeconds <= 0 {
		return nil, errkind.New(errkind.Invalid, "max_allowed_seconds must be positive")
	}
	estimatedSeconds, err := EstimateTuningRuntimeSeconds(numTrials, perTrialEstimatedSeconds)
	if err != nil {
		return nil, err
	}
	return checkBudget(estimatedSeconds, maxAllowedSeconds)
}
