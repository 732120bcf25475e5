package analytics

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

const technicalsBackfillSource = "stage1_sma"

// QuerySMA computes a simple moving average of close price over window
// periods for symbol in [start, end], using SQLite's native window
// aggregate rather than fetching the whole series into Go.
func (s *Store) QuerySMA(symbol, start, end string, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	rows, err := s.db.Conn().Query(`
		SELECT AVG(close) OVER (
			PARTITION BY symbol ORDER BY timestamp
			ROWS BETWEEN ? PRECEDING AND CURRENT ROW
		) AS sma
		FROM market_ohlcv
		WHERE symbol = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC`, window-1, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sma: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan sma row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SmaSeries computes a simple moving average over a fetched close-price
// slice using go-talib, for ingestion-time technicals backfill where a
// vectorized batch computation outside SQL is wanted.
func SmaSeries(closes []float64, period int) []float64 {
	return talib.Sma(closes, period)
}

// EmaSeries computes an exponential moving average over a fetched
// close-price slice using go-talib.
func EmaSeries(closes []float64, period int) []float64 {
	return talib.Ema(closes, period)
}

// BackfillTechnicals computes sma_short/sma_long/ema_short over each
// symbol's close-price series with the vectorized go-talib pass
// (SmaSeries/EmaSeries) and persists the result into market_technicals,
// mirroring the original's compute_sma_features: existing stage1_sma rows
// for the affected symbols are replaced, not accumulated, so a repeated
// backfill over the same window is idempotent.
func (s *Store) BackfillTechnicals(universe []string, start, end string, shortWindow, longWindow int) (int, error) {
	if shortWindow < 1 || longWindow < 2 || shortWindow >= longWindow {
		return 0, fmt.Errorf("invalid windows: require 1 <= short_window < long_window")
	}
	if len(universe) == 0 {
		return 0, fmt.Errorf("universe must not be empty")
	}

	tx, err := s.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin technicals backfill transaction: %w", err)
	}
	defer tx.Rollback()

	del, err := tx.Prepare(`DELETE FROM market_technicals WHERE symbol = ? AND source = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare technicals delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.Prepare(`
		INSERT INTO market_technicals (symbol, timestamp, sma_short, sma_long, ema_short, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timestamp, source) DO UPDATE SET
			sma_short = excluded.sma_short, sma_long = excluded.sma_long, ema_short = excluded.ema_short`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare technicals insert: %w", err)
	}
	defer ins.Close()

	inserted := 0
	for _, symbol := range universe {
		rows, err := s.QueryOHLCVRange(symbol, start, end)
		if err != nil {
			return 0, fmt.Errorf("failed to load ohlcv for technicals backfill: %w", err)
		}
		if len(rows) == 0 {
			continue
		}
		closes := make([]float64, len(rows))
		for i, r := range rows {
			closes[i] = r.Close
		}

		if _, err := del.Exec(symbol, technicalsBackfillSource); err != nil {
			return 0, fmt.Errorf("failed to clear existing technicals for %s: %w", symbol, err)
		}

		smaShort := SmaSeries(closes, shortWindow)
		smaLong := SmaSeries(closes, longWindow)
		emaShort := EmaSeries(closes, shortWindow)

		for i, r := range rows {
			res, err := ins.Exec(symbol, r.Timestamp,
				nanToNull(smaShort[i]), nanToNull(smaLong[i]), nanToNull(emaShort[i]), technicalsBackfillSource)
			if err != nil {
				return 0, fmt.Errorf("failed to insert technicals row for %s@%s: %w", symbol, r.Timestamp, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
	}
	if inserted <= 0 {
		return 0, fmt.Errorf("no technical rows generated")
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit technicals backfill: %w", err)
	}
	return inserted, nil
}

func nanToNull(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// CountTechnicalsBySymbol returns the backfilled technicals row count for
// every symbol in universe within [start, end], including symbols with
// zero rows, for the world-state completeness check.
func (s *Store) CountTechnicalsBySymbol(universe []string, start, end string) (map[string]int, error) {
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
		SELECT symbol, COUNT(*) FROM market_technicals
		WHERE symbol IN (%s) AND timestamp BETWEEN ? AND ?
		GROUP BY symbol`, placeholders(len(universe)))
	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count technicals rows by symbol: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym string
		var n int
		if err := rows.Scan(&sym, &n); err != nil {
			return nil, fmt.Errorf("failed to scan technicals symbol count: %w", err)
		}
		counts[sym] = n
	}
	return counts, rows.Err()
}
