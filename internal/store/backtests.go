package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
)

// BacktestRun is one append-only backtest result row.
type BacktestRun struct {
	RunID              string
	StrategyVersionID  string
	WorldManifestID    string
	MetricsJSON        string
	ArtifactPathsJSON  string
	PayloadJSON        string
	CreatedAt          time.Time
}

// SaveBacktestRun inserts a new, immutable backtest run row.
func (s *Store) SaveBacktestRun(r *BacktestRun) error {
	if r.RunID == "" {
		return errkind.New(errkind.Invalid, "run_id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO backtest_runs (run_id, strategy_version_id, world_manifest_id, metrics, artifact_paths, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, nullString(r.StrategyVersionID), nullString(r.WorldManifestID), r.MetricsJSON, r.ArtifactPathsJSON, r.PayloadJSON,
		r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}
	return nil
}

// GetBacktestRun fetches a single run by id.
func (s *Store) GetBacktestRun(runID string) (*BacktestRun, error) {
	row := s.db.Conn().QueryRow(`
		SELECT run_id, strategy_version_id, world_manifest_id, metrics, artifact_paths, payload, created_at
		FROM backtest_runs WHERE run_id = ?`, runID)

	var r BacktestRun
	var strategyVersionID, worldManifestID sql.NullString
	var createdAt string
	if err := row.Scan(&r.RunID, &strategyVersionID, &worldManifestID, &r.MetricsJSON, &r.ArtifactPathsJSON, &r.PayloadJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "backtest run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}
	r.StrategyVersionID = stringOrEmpty(strategyVersionID)
	r.WorldManifestID = stringOrEmpty(worldManifestID)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &r, nil
}

// ListBacktestRuns lists runs, optionally filtered by strategy_version_id,
// newest first, bounded by limit (must be positive).
func (s *Store) ListBacktestRuns(strategyVersionID string, limit int) ([]*BacktestRun, error) {
	if limit <= 0 {
		return nil, errkind.New(errkind.Invalid, "limit must be positive")
	}

	query := `SELECT run_id, strategy_version_id, world_manifest_id, metrics, artifact_paths, payload, created_at
		FROM backtest_runs`
	args := []interface{}{}
	if strategyVersionID != "" {
		query += ` WHERE strategy_version_id = ?`
		args = append(args, strategyVersionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	defer rows.Close()

	var out []*BacktestRun
	for rows.Next() {
		var r BacktestRun
		var strategyVersionID, worldManifestID sql.NullString
		var createdAt string
		if err := rows.Scan(&r.RunID, &strategyVersionID, &worldManifestID, &r.MetricsJSON, &r.ArtifactPathsJSON, &r.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		r.StrategyVersionID = stringOrEmpty(strategyVersionID)
		r.WorldManifestID = stringOrEmpty(worldManifestID)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}
