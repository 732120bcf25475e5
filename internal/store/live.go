package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/google/uuid"
)

var validLiveStatuses = map[string]bool{"active": true, "paused": true, "stopped": true}

// LiveState is the single current-status row per strategy version.
type LiveState struct {
	StrategyVersionID string
	StrategyName      string
	Status            string
	PayloadJSON       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UpsertLiveState inserts or updates the one-row-per-version live status.
func (s *Store) UpsertLiveState(ls *LiveState) error {
	if !validLiveStatuses[ls.Status] {
		return errkind.Newf(errkind.Invalid, "invalid live status: %s", ls.Status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.Conn().Exec(`
		INSERT INTO live_state (strategy_version_id, strategy_name, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_version_id) DO UPDATE SET
			strategy_name = excluded.strategy_name,
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		ls.StrategyVersionID, ls.StrategyName, ls.Status, ls.PayloadJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert live state: %w", err)
	}
	return nil
}

// GetLiveState returns the live status row for a strategy version.
func (s *Store) GetLiveState(strategyVersionID string) (*LiveState, error) {
	row := s.db.Conn().QueryRow(`
		SELECT strategy_version_id, strategy_name, status, payload, created_at, updated_at
		FROM live_state WHERE strategy_version_id = ?`, strategyVersionID)

	var ls LiveState
	var createdAt, updatedAt string
	if err := row.Scan(&ls.StrategyVersionID, &ls.StrategyName, &ls.Status, &ls.PayloadJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "live state not found for strategy_version_id=%s", strategyVersionID)
		}
		return nil, fmt.Errorf("failed to get live state: %w", err)
	}
	ls.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	ls.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &ls, nil
}

// LiveInsight is one append-only boundary-proximity row.
type LiveInsight struct {
	ID                string
	StrategyVersionID string
	Action            string
	Symbol            string
	ReasonCode        string
	Score             float64
	PayloadJSON       string
	CreatedAt         time.Time
}

// AppendLiveInsight appends a live-insight row.
func (s *Store) AppendLiveInsight(li *LiveInsight) error {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.Conn().Exec(`
		INSERT INTO live_insights (id, strategy_version_id, action, symbol, reason_code, score, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		li.ID, li.StrategyVersionID, li.Action, li.Symbol, li.ReasonCode, li.Score, li.PayloadJSON, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append live insight: %w", err)
	}
	li.CreatedAt = now
	return nil
}

// ListLiveInsights returns the most recent insights for a strategy version.
func (s *Store) ListLiveInsights(strategyVersionID string, limit int) ([]*LiveInsight, error) {
	if limit <= 0 {
		return nil, errkind.New(errkind.Invalid, "limit must be positive")
	}
	rows, err := s.db.Conn().Query(`
		SELECT id, strategy_version_id, action, symbol, reason_code, score, payload, created_at
		FROM live_insights WHERE strategy_version_id = ? ORDER BY created_at DESC LIMIT ?`, strategyVersionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list live insights: %w", err)
	}
	defer rows.Close()

	var out []*LiveInsight
	for rows.Next() {
		var li LiveInsight
		var createdAt string
		if err := rows.Scan(&li.ID, &li.StrategyVersionID, &li.Action, &li.Symbol, &li.ReasonCode, &li.Score, &li.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan live insight: %w", err)
		}
		li.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &li)
	}
	return out, rows.Err()
}
