package analytics

import (
	"database/sql"
	"fmt"
)

// InstrumentRow is one entry of the instrument master list.
type InstrumentRow struct {
	Symbol      string
	Name        sql.NullString
	Exchange    sql.NullString
	DatasetHash string
	FetchedAt   string
}

// PutInstrument upserts a single instrument row, refreshing name/exchange on
// re-fetch so the master list always reflects the latest snapshot.
func (s *Store) PutInstrument(r InstrumentRow) error {
	_, err := s.db.Conn().Exec(`
		INSERT INTO market_instruments (symbol, name, exchange, dataset_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			dataset_hash = excluded.dataset_hash,
			fetched_at = excluded.fetched_at`,
		r.Symbol, r.Name, r.Exchange, r.DatasetHash, r.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", r.Symbol, err)
	}
	return nil
}

// GetInstrument returns the instrument master row for symbol.
func (s *Store) GetInstrument(symbol string) (*InstrumentRow, error) {
	row := s.db.Conn().QueryRow(`
		SELECT symbol, name, exchange, dataset_hash, fetched_at
		FROM market_instruments WHERE symbol = ?`, symbol)

	var r InstrumentRow
	if err := row.Scan(&r.Symbol, &r.Name, &r.Exchange, &r.DatasetHash, &r.FetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no instrument found for symbol=%s", symbol)
		}
		return nil, fmt.Errorf("failed to query instrument: %w", err)
	}
	return &r, nil
}

// ListInstruments returns every symbol in the universe that has an
// instrument master row, used to detect unknown symbols before ingest.
func (s *Store) ListInstruments(universe []string) ([]InstrumentRow, error) {
	if len(universe) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT symbol, name, exchange, dataset_hash, fetched_at
		FROM market_instruments WHERE symbol IN (%s)
		ORDER BY symbol ASC`, placeholders(len(universe)))
	rows, err := s.db.Conn().Query(query, symbolArgs(universe)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var out []InstrumentRow
	for rows.Next() {
		var r InstrumentRow
		if err := rows.Scan(&r.Symbol, &r.Name, &r.Exchange, &r.DatasetHash, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
