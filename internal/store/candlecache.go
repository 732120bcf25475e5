package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/vmihailenco/msgpack/v5"
)

// CandleRow is one OHLCV row as cached from a Kite candle response. Kept
// separate from analytics.OHLCVRow: this is the wire shape of one cached
// provider response, not a persisted analytics row.
type CandleRow struct {
	Timestamp string  `msgpack:"ts"`
	Open      float64 `msgpack:"o"`
	High      float64 `msgpack:"h"`
	Low       float64 `msgpack:"l"`
	Close     float64 `msgpack:"c"`
	Volume    float64 `msgpack:"v"`
}

// EncodeCandleRows packs a candle window into the compact binary form
// stored in kite_candle_cache.payload.
func EncodeCandleRows(rows []CandleRow) ([]byte, error) {
	payload, err := msgpack.Marshal(rows)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to encode candle rows")
	}
	return payload, nil
}

// DecodeCandleRows unpacks a cached candle window payload.
func DecodeCandleRows(payload []byte) ([]CandleRow, error) {
	var rows []CandleRow
	if err := msgpack.Unmarshal(payload, &rows); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to decode candle rows")
	}
	return rows, nil
}

// KiteCandleCache is one cached OHLCV response window from the Kite
// connector, keyed by a hash of its request parameters so identical requests
// within the cache window are served without a network round trip.
type KiteCandleCache struct {
	CacheKey        string
	Symbol          string
	InstrumentToken string
	Interval        string
	FromTS          string
	ToTS            string
	RowCount        int
	DatasetHash     string
	Payload         []byte
	CreatedAt       time.Time
}

// CandleCacheKey hashes the canonical request 5-tuple so that requests for
// the same symbol/instrument/interval/window collide on the same row
// regardless of field ordering in the caller's JSON encoder.
func CandleCacheKey(symbol, instrumentToken, interval, fromTS, toTS string) string {
	tuple := []string{symbol, instrumentToken, interval, fromTS, toTS}
	canonical, _ := json.Marshal(tuple)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// PutCandleCache inserts or replaces a cached window.
func (s *Store) PutCandleCache(c *KiteCandleCache) error {
	if c.CacheKey == "" {
		c.CacheKey = CandleCacheKey(c.Symbol, c.InstrumentToken, c.Interval, c.FromTS, c.ToTS)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Conn().Exec(`
		INSERT INTO kite_candle_cache
			(cache_key, symbol, instrument_token, interval, from_ts, to_ts, row_count, dataset_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			row_count = excluded.row_count,
			dataset_hash = excluded.dataset_hash,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		c.CacheKey, c.Symbol, c.InstrumentToken, c.Interval, c.FromTS, c.ToTS, c.RowCount, c.DatasetHash, c.Payload, now)
	if err != nil {
		return fmt.Errorf("failed to put candle cache entry: %w", err)
	}
	return nil
}

// GetCandleCache looks up a cached window by its request parameters.
func (s *Store) GetCandleCache(symbol, instrumentToken, interval, fromTS, toTS string) (*KiteCandleCache, error) {
	key := CandleCacheKey(symbol, instrumentToken, interval, fromTS, toTS)
	row := s.db.Conn().QueryRow(`
		SELECT cache_key, symbol, instrument_token, interval, from_ts, to_ts, row_count, dataset_hash, payload, created_at
		FROM kite_candle_cache WHERE cache_key = ?`, key)

	var c KiteCandleCache
	var createdAt string
	if err := row.Scan(&c.CacheKey, &c.Symbol, &c.InstrumentToken, &c.Interval, &c.FromTS, &c.ToTS,
		&c.RowCount, &c.DatasetHash, &c.Payload, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.New(errkind.NotFound, "candle cache miss")
		}
		return nil, fmt.Errorf("failed to get candle cache entry: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}
