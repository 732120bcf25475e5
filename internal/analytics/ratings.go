package analytics

import (
	"fmt"
)

// RatingRow is one point-in-time analyst rating revision.
type RatingRow struct {
	Symbol      string
	RevisedAt   string
	Agency      string
	Rating      string
	PayloadJSON string
	SourceFile  string
	DatasetHash string
	IngestedAt  string
}

// PutRatingRows inserts rows, skipping duplicates on (symbol, revised_at, agency).
func (s *Store) PutRatingRows(rows []RatingRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin ratings import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO analyst_ratings
			(symbol, revised_at, agency, rating, payload_json, source_file, dataset_hash, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, revised_at, agency) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare ratings insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		if r.PayloadJSON == "" {
			r.PayloadJSON = "{}"
		}
		res, err := stmt.Exec(r.Symbol, r.RevisedAt, r.Agency, r.Rating, r.PayloadJSON, r.SourceFile, r.DatasetHash, r.IngestedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert rating row for %s@%s: %w", r.Symbol, r.RevisedAt, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ratings import: %w", err)
	}
	return inserted, nil
}

// QueryRatingsAsOf returns the most recent rating per agency at or before asOf.
func (s *Store) QueryRatingsAsOf(symbol, asOf string) ([]RatingRow, error) {
	rows, err := s.db.Conn().Query(`
		SELECT symbol, revised_at, agency, rating, payload_json, source_file, dataset_hash, ingested_at
		FROM analyst_ratings r
		WHERE symbol = ? AND revised_at <= ?
		  AND revised_at = (
		    SELECT MAX(r2.revised_at) FROM analyst_ratings r2
		    WHERE r2.symbol = r.symbol AND r2.agency = r.agency AND r2.revised_at <= ?
		  )
		ORDER BY agency ASC`, symbol, asOf, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings as-of: %w", err)
	}
	defer rows.Close()

	var out []RatingRow
	for rows.Next() {
		var r RatingRow
		if err := rows.Scan(&r.Symbol, &r.RevisedAt, &r.Agency, &r.Rating, &r.PayloadJSON, &r.SourceFile, &r.DatasetHash, &r.IngestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRatingsAsOf returns how many rating rows across universe were revised
// at or before asOf, used for the world-state manifest hash.
func (s *Store) CountRatingsAsOf(universe []string, asOf string) (int, error) {
	if len(universe) == 0 {
		return 0, nil
	}
	args := symbolArgs(universe)
	args = append(args, asOf)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM analyst_ratings WHERE symbol IN (%s) AND revised_at <= ?`, placeholders(len(universe)))
	var n int
	if err := s.db.Conn().QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ratings as-of: %w", err)
	}
	return n, nil
}
