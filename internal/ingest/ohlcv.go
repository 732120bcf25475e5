package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/errkind"
)

var ohlcvRequiredColumns = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume"}

// ImportOHLCVFile loads an OHLCV CSV. published_at is copied from timestamp
// when the file omits it; every other importer forbids a missing event time.
func (imp *Importer) ImportOHLCVFile(path, traceID string) (Result, error) {
	if err := ensureSupportedInput(path); err != nil {
		return Result{}, err
	}
	datasetHash, err := hashFile(path)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to open input file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to read header row")
	}
	if missing := missingColumns(header, ohlcvRequiredColumns); len(missing) > 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "missing required columns: %v", missing)
	}
	idx := columnIndex(header)

	now := nowRFC3339()
	var rows []analytics.OHLCVRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to read data row")
		}
		ts := record[idx["timestamp"]]
		if ts == "" {
			return Result{}, errkind.New(errkind.Invalid, "timestamp is required for all rows")
		}
		publishedAt := ts
		if v, ok := idx["published_at"]; ok && record[v] != "" {
			publishedAt = record[v]
		}

		open, err := strconv.ParseFloat(record[idx["open"]], 64)
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to parse open")
		}
		high, err := strconv.ParseFloat(record[idx["high"]], 64)
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to parse high")
		}
		low, err := strconv.ParseFloat(record[idx["low"]], 64)
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to parse low")
		}
		closePrice, err := strconv.ParseFloat(record[idx["close"]], 64)
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to parse close")
		}
		volume, err := strconv.ParseFloat(record[idx["volume"]], 64)
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to parse volume")
		}
		if volume < 0 {
			return Result{}, errkind.Newf(errkind.Invalid, "volume must be >= 0, got %f", volume)
		}

		rows = append(rows, analytics.OHLCVRow{
			Symbol: record[idx["symbol"]], Timestamp: ts, PublishedAt: publishedAt,
			Open: open, High: high, Low: low, Close: closePrice, Volume: volume,
			SourceFile: path, DatasetHash: datasetHash, IngestedAt: now,
		})
	}

	inserted, err := imp.analytics.PutOHLCVRows(rows)
	if err != nil {
		return Result{}, errkind.Wrap(errkind.Internal, err, "failed to insert ohlcv rows")
	}
	if inserted <= 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "no rows inserted from %s", path)
	}

	if err := imp.store.AppendAuditEvent(traceID, "data.import", map[string]interface{}{
		"source_path": path, "rows_inserted": inserted, "dataset_hash": datasetHash,
	}); err != nil {
		imp.log.Warn().Err(err).Str("path", path).Msg("failed to append import audit event")
	}

	return Result{SourcePath: path, RowsInserted: inserted, DatasetHash: datasetHash}, nil
}
