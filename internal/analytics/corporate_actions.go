package analytics

import (
	"database/sql"
	"fmt"
)

// CorporateActionRow is one split/dividend/other corporate action event.
type CorporateActionRow struct {
	Symbol      string
	EffectiveAt string
	ActionType  string
	ActionValue sql.NullFloat64
	PayloadJSON string
	SourceFile  string
	DatasetHash string
	IngestedAt  string
}

// PutCorporateActionRows inserts rows, skipping duplicates on
// (symbol, effective_at, action_type).
func (s *Store) PutCorporateActionRows(rows []CorporateActionRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin corporate actions import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO corporate_actions
			(symbol, effective_at, action_type, action_value, payload_json, source_file, dataset_hash, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, effective_at, action_type) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare corporate actions insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		if r.PayloadJSON == "" {
			r.PayloadJSON = "{}"
		}
		res, err := stmt.Exec(r.Symbol, r.EffectiveAt, r.ActionType, r.ActionValue, r.PayloadJSON, r.SourceFile, r.DatasetHash, r.IngestedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert corporate action row for %s@%s: %w", r.Symbol, r.EffectiveAt, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit corporate actions import: %w", err)
	}
	return inserted, nil
}

// CountCorporateActionsInRange returns how many corporate action rows across
// universe fall within [start, end] by effective date.
func (s *Store) CountCorporateActionsInRange(universe []string, start, end string) (int, error) {
	if len(universe) == 0 {
		return 0, nil
	}
	args := symbolArgs(universe)
	args = append(args, start, end)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM corporate_actions WHERE symbol IN (%s) AND effective_at BETWEEN ? AND ?`, placeholders(len(universe)))
	var n int
	if err := s.db.Conn().QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count corporate actions in range: %w", err)
	}
	return n, nil
}
