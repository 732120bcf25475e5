package analytics

import (
	"database/sql"
	"fmt"
)

// FundamentalsRow is one point-in-time fundamentals disclosure.
type FundamentalsRow struct {
	Symbol      string
	PublishedAt string
	PERatio     sql.NullFloat64
	EPS         sql.NullFloat64
	PayloadJSON string
	SourceFile  string
	DatasetHash string
	IngestedAt  string
}

// PutFundamentalsRows inserts rows, skipping duplicates on (symbol, published_at).
func (s *Store) PutFundamentalsRows(rows []FundamentalsRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin fundamentals import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO company_fundamentals
			(symbol, published_at, pe_ratio, eps, payload_json, source_file, dataset_hash, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, published_at) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare fundamentals insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		if r.PayloadJSON == "" {
			r.PayloadJSON = "{}"
		}
		res, err := stmt.Exec(r.Symbol, r.PublishedAt, r.PERatio, r.EPS, r.PayloadJSON, r.SourceFile, r.DatasetHash, r.IngestedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fundamentals row for %s@%s: %w", r.Symbol, r.PublishedAt, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fundamentals import: %w", err)
	}
	return inserted, nil
}

// QueryFundamentalsAsOf returns the most recent fundamentals row published
// at or before asOf, the point-in-time lookup contract: future disclosures
// relative to asOf are invisible regardless of ingestion order.
func (s *Store) QueryFundamentalsAsOf(symbol, asOf string) (*FundamentalsRow, error) {
	row := s.db.Conn().QueryRow(`
		SELECT symbol, published_at, pe_ratio, eps, payload_json, source_file, dataset_hash, ingested_at
		FROM company_fundamentals
		WHERE symbol = ? AND published_at <= ?
		ORDER BY published_at DESC
		LIMIT 1`, symbol, asOf)

	var r FundamentalsRow
	if err := row.Scan(&r.Symbol, &r.PublishedAt, &r.PERatio, &r.EPS, &r.PayloadJSON, &r.SourceFile, &r.DatasetHash, &r.IngestedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no fundamentals row found for symbol=%s as_of=%s", symbol, asOf)
		}
		return nil, fmt.Errorf("failed to query fundamentals as-of: %w", err)
	}
	return &r, nil
}

// CountFundamentalsAsOf returns how many fundamentals rows across universe
// were published at or before asOf, used for the world-state manifest hash.
func (s *Store) CountFundamentalsAsOf(universe []string, asOf string) (int, error) {
	if len(universe) == 0 {
		return 0, nil
	}
	args := symbolArgs(universe)
	args = append(args, asOf)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM company_fundamentals WHERE symbol IN (%s) AND published_at <= ?`, placeholders(len(universe)))
	var n int
	if err := s.db.Conn().QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fundamentals as-of: %w", err)
	}
	return n, nil
}
