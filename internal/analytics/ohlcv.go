package analytics

import (
	"database/sql"
	"fmt"
)

// OHLCVRow is one row of the PIT-safe OHLCV table. PublishedAt must be <=
// Timestamp; rows violating that are a PIT leak, flagged by the world-state
// validator rather than rejected here (the importer copies Timestamp into
// PublishedAt when the source omits it).
type OHLCVRow struct {
	Symbol      string
	Timestamp   string
	PublishedAt string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	SourceFile  string
	DatasetHash string
	IngestedAt  string
}

// PutOHLCVRows inserts rows, skipping ones that already exist for their
// (symbol, timestamp) key, and returns the count actually inserted so
// callers can detect "no rows inserted" as an error.
func (s *Store) PutOHLCVRows(rows []OHLCVRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin ohlcv import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO market_ohlcv
			(symbol, timestamp, published_at, open, high, low, close, volume, source_file, dataset_hash, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timestamp) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare ohlcv insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		res, err := stmt.Exec(r.Symbol, r.Timestamp, r.PublishedAt, r.Open, r.High, r.Low, r.Close, r.Volume,
			r.SourceFile, r.DatasetHash, r.IngestedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert ohlcv row for %s@%s: %w", r.Symbol, r.Timestamp, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ohlcv import: %w", err)
	}
	return inserted, nil
}

// QueryOHLCVRange returns every row for symbol with timestamp in [start, end]
// (inclusive), ordered chronologically.
func (s *Store) QueryOHLCVRange(symbol, start, end string) ([]OHLCVRow, error) {
	rows, err := s.db.Conn().Query(`
		SELECT symbol, timestamp, published_at, open, high, low, close, volume, source_file, dataset_hash, ingested_at
		FROM market_ohlcv
		WHERE symbol = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv range: %w", err)
	}
	defer rows.Close()
	return scanOHLCVRows(rows)
}

// QueryUniverseRange returns every row for any symbol in universe within
// [start, end], ordered by (symbol, timestamp), the exact shape the
// world-state manifest hash is built over.
func (s *Store) QueryUniverseRange(universe []string, start, end string) ([]OHLCVRow, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("universe must not be empty")
	}
	args := symbolArgs(universe)
	args = append(args, start, end)
	query := fmt.Sprintf(`
		SELECT symbol, timestamp, published_at, open, high, low, close, volume, source_file, dataset_hash, ingested_at
		FROM market_ohlcv
		WHERE symbol IN (%s) AND timestamp BETWEEN ? AND ?
		ORDER BY symbol ASC, timestamp ASC`, placeholders(len(universe)))
	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query universe range: %w", err)
	}
	defer rows.Close()
	return scanOHLCVRows(rows)
}

func scanOHLCVRows(rows *sql.Rows) ([]OHLCVRow, error) {
	var out []OHLCVRow
	for rows.Next() {
		var r OHLCVRow
		if err := rows.Scan(&r.Symbol, &r.Timestamp, &r.PublishedAt, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
			&r.SourceFile, &r.DatasetHash, &r.IngestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ohlcv row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PITLeakRow names a row whose published_at postdates its timestamp.
type PITLeakRow struct {
	Symbol      string
	Timestamp   string
	PublishedAt string
}

// DetectPITLeaks finds every row in universe/[start,end] where published_at
// is strictly after timestamp, the leak condition the world-state validator
// rejects in strict mode.
func (s *Store) DetectPITLeaks(universe []string, start, end string) ([]PITLeakRow, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("universe must not be empty")
	}
	args := symbolArgs(universe)
	args = append(args, start, end)
	query := fmt.Sprintf(`
		SELECT symbol, timestamp, published_at
		FROM market_ohlcv
		WHERE symbol IN (%s) AND timestamp BETWEEN ? AND ? AND published_at > timestamp`, placeholders(len(universe)))
	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to detect pit leaks: %w", err)
	}
	defer rows.Close()

	var out []PITLeakRow
	for rows.Next() {
		var r PITLeakRow
		if err := rows.Scan(&r.Symbol, &r.Timestamp, &r.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pit leak row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountBySymbol returns the OHLCV row count for every symbol in universe
// within [start, end], including symbols with zero rows, for completeness
// checks against the requested universe.
func (s *Store) CountBySymbol(universe []string, start, end string) (map[string]int, error) {
	counts := make(map[string]int, len(universe))
	for _, sym := range universe {
		counts[sym] = 0
	}
	if len(universe) == 0 {
		return counts, nil
	}
	args := symbolArgs(universe)
	args = append(args, start, end)
	query := fmt.Sprintf(`
		SELECT symbol, COUNT(*) FROM market_ohlcv
		WHERE symbol IN (%s) AND timestamp BETWEEN ? AND ?
		GROUP BY symbol`, placeholders(len(universe)))
	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count ohlcv rows by symbol: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym string
		var n int
		if err := rows.Scan(&sym, &n); err != nil {
			return nil, fmt.Errorf("failed to scan symbol count: %w", err)
		}
		counts[sym] = n
	}
	return counts, rows.Err()
}
