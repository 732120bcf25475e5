package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/google/uuid"
)

// IntentSnapshot captures a tuning or backtest intent (universe, date range,
// extra parameters) at request time, so a later run can be explained in
// terms of what was actually asked for rather than re-derived from defaults.
type IntentSnapshot struct {
	ID          string
	UniverseJSON string
	StartDate   string
	EndDate     string
	PayloadJSON string
	CreatedAt   time.Time
}

// SaveIntentSnapshot persists a new intent snapshot and returns its id.
func (s *Store) SaveIntentSnapshot(universeJSON, startDate, endDate, payloadJSON string) (*IntentSnapshot, error) {
	snap := &IntentSnapshot{
		ID: uuid.NewString(), UniverseJSON: universeJSON, StartDate: startDate,
		EndDate: endDate, PayloadJSON: payloadJSON, CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO intent_snapshots (id, universe, start_date, end_date, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.UniverseJSON, snap.StartDate, snap.EndDate, snap.PayloadJSON, snap.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to save intent snapshot: %w", err)
	}
	return snap, nil
}

// GetIntentSnapshot fetches a previously saved intent snapshot by id.
func (s *Store) GetIntentSnapshot(id string) (*IntentSnapshot, error) {
	row := s.db.Conn().QueryRow(`
		SELECT id, universe, start_date, end_date, payload, created_at
		FROM intent_snapshots WHERE id = ?`, id)

	var snap IntentSnapshot
	var createdAt string
	if err := row.Scan(&snap.ID, &snap.UniverseJSON, &snap.StartDate, &snap.EndDate, &snap.PayloadJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "intent snapshot not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get intent snapshot: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &snap, nil
}
