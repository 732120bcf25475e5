package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/google/uuid"
)

// TaxReport is a generated realized-gains report for a date range, stored so
// it can be re-downloaded without recomputation.
type TaxReport struct {
	ID          string
	PayloadJSON string
	CreatedAt   time.Time
}

// SaveTaxReport persists a generated tax report and returns its id.
func (s *Store) SaveTaxReport(payloadJSON string) (*TaxReport, error) {
	r := &TaxReport{ID: uuid.NewString(), PayloadJSON: payloadJSON, CreatedAt: time.Now().UTC()}
	_, err := s.db.Conn().Exec(`INSERT INTO tax_reports (id, payload, created_at) VALUES (?, ?, ?)`,
		r.ID, r.PayloadJSON, r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to save tax report: %w", err)
	}
	return r, nil
}

// GetTaxReport fetches a previously generated tax report by id.
func (s *Store) GetTaxReport(id string) (*TaxReport, error) {
	row := s.db.Conn().QueryRow(`SELECT id, payload, created_at FROM tax_reports WHERE id = ?`, id)

	var r TaxReport
	var createdAt string
	if err := row.Scan(&r.ID, &r.PayloadJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "tax report not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get tax report: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &r, nil
}
