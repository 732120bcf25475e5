package analytics

import (
	"database/sql"
	"fmt"
)

// QuoteRow is one point-in-time live quote snapshot.
type QuoteRow struct {
	Symbol      string
	FetchedAt   string
	Price       float64
	DatasetHash string
}

// PutQuote inserts a quote snapshot, skipping a duplicate (symbol, fetched_at)
// pair rather than erroring, since live polling can race with itself.
func (s *Store) PutQuote(r QuoteRow) error {
	_, err := s.db.Conn().Exec(`
		INSERT INTO market_quotes (symbol, fetched_at, price, dataset_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, fetched_at) DO NOTHING`,
		r.Symbol, r.FetchedAt, r.Price, r.DatasetHash)
	if err != nil {
		return fmt.Errorf("failed to insert quote for %s@%s: %w", r.Symbol, r.FetchedAt, err)
	}
	return nil
}

// GetLatestQuote returns the most recently fetched quote for symbol.
func (s *Store) GetLatestQuote(symbol string) (*QuoteRow, error) {
	row := s.db.Conn().QueryRow(`
		SELECT symbol, fetched_at, price, dataset_hash
		FROM market_quotes WHERE symbol = ?
		ORDER BY fetched_at DESC LIMIT 1`, symbol)

	var r QuoteRow
	if err := row.Scan(&r.Symbol, &r.FetchedAt, &r.Price, &r.DatasetHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no quote found for symbol=%s", symbol)
		}
		return nil, fmt.Errorf("failed to query latest quote: %w", err)
	}
	return &r, nil
}

// GetLatestQuotes returns the most recent quote per symbol across universe.
func (s *Store) GetLatestQuotes(universe []string) (map[string]QuoteRow, error) {
	out := make(map[string]QuoteRow, len(universe))
	if len(universe) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
		SELECT q.symbol, q.fetched_at, q.price, q.dataset_hash
		FROM market_quotes q
		WHERE q.symbol IN (%s) AND q.fetched_at = (
			SELECT MAX(q2.fetched_at) FROM market_quotes q2 WHERE q2.symbol = q.symbol
		)`, placeholders(len(universe)))
	rows, err := s.db.Conn().Query(query, symbolArgs(universe)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r QuoteRow
		if err := rows.Scan(&r.Symbol, &r.FetchedAt, &r.Price, &r.DatasetHash); err != nil {
			return nil, fmt.Errorf("failed to scan quote row: %w", err)
		}
		out[r.Symbol] = r
	}
	return out, rows.Err()
}
