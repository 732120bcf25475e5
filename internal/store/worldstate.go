package store

import (
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel/internal/errkind"
)

// WorldStateManifest is the immutable, persisted record of a frozen data
// snapshot over a universe/date-range/adjustment-policy triple.
type WorldStateManifest struct {
	ManifestID                string
	Universe                  string // JSON array
	StartDate                 string
	EndDate                   string
	AdjustmentPolicy          string
	DataHash                  string
	RowCount                  int
	FundamentalsRowCount      int
	CorporateActionsRowCount  int
	RatingsRowCount           int
	CreatedAt                 string
}

// SaveWorldStateManifest persists a manifest. Manifests are immutable once
// created: a duplicate manifest_id is a conflict, not an upsert.
func (s *Store) SaveWorldStateManifest(m WorldStateManifest) error {
	_, err := s.db.Conn().Exec(`
		INSERT INTO world_state_manifests
			(manifest_id, universe, start_date, end_date, adjustment_policy, data_hash,
			 row_count, fundamentals_row_count, corporate_actions_row_count, ratings_row_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ManifestID, m.Universe, m.StartDate, m.EndDate, m.AdjustmentPolicy, m.DataHash,
		m.RowCount, m.FundamentalsRowCount, m.CorporateActionsRowCount, m.RatingsRowCount, m.CreatedAt)
	if err != nil {
		return errkind.Wrap(errkind.Conflict, err, fmt.Sprintf("failed to save world-state manifest %s", m.ManifestID))
	}
	return nil
}

// GetWorldStateManifest loads a previously-built manifest by id.
func (s *Store) GetWorldStateManifest(manifestID string) (*WorldStateManifest, error) {
	row := s.db.Conn().QueryRow(`
		SELECT manifest_id, universe, start_date, end_date, adjustment_policy, data_hash,
		       row_count, fundamentals_row_count, corporate_actions_row_count, ratings_row_count, created_at
		FROM world_state_manifests WHERE manifest_id = ?`, manifestID)

	var m WorldStateManifest
	if err := row.Scan(&m.ManifestID, &m.Universe, &m.StartDate, &m.EndDate, &m.AdjustmentPolicy, &m.DataHash,
		&m.RowCount, &m.FundamentalsRowCount, &m.CorporateActionsRowCount, &m.RatingsRowCount, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "world-state manifest %s not found", manifestID)
		}
		return nil, errkind.Wrap(errkind.Internal, err, "failed to load world-state manifest")
	}
	return &m, nil
}
