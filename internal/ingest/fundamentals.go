package ingest

import (
	"database/sql"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/errkind"
)

var fundamentalsRequiredColumns = []string{"symbol", "published_at"}

// ImportFundamentalsFile loads a fundamentals CSV. published_at is a
// mandatory event time here, unlike OHLCV's timestamp fallback.
func (imp *Importer) ImportFundamentalsFile(path, traceID string) (Result, error) {
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
	if missing := missingColumns(header, fundamentalsRequiredColumns); len(missing) > 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "missing required columns: %v", missing)
	}
	idx := columnIndex(header)

	now := nowRFC3339()
	var rows []analytics.FundamentalsRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to read data row")
		}
		publishedAt := record[idx["published_at"]]
		if publishedAt == "" {
			return Result{}, errkind.New(errkind.Invalid, "published_at is required for all rows")
		}

		row := analytics.FundamentalsRow{
			Symbol: record[idx["symbol"]], PublishedAt: publishedAt,
			SourceFile: path, DatasetHash: datasetHash, IngestedAt: now,
		}
		if v, ok := idx["pe_ratio"]; ok && record[v] != "" {
			if f, err := strconv.ParseFloat(record[v], 64); err == nil {
				row.PERatio = sql.NullFloat64{Float64: f, Valid: true}
			}
		}
		if v, ok := idx["eps"]; ok && record[v] != "" {
			if f, err := strconv.ParseFloat(record[v], 64); err == nil {
				row.EPS = sql.NullFloat64{Float64: f, Valid: true}
			}
		}
		rows = append(rows, row)
	}

	inserted, err := imp.analytics.PutFundamentalsRows(rows)
	if err != nil {
		return Result{}, errkind.Wrap(errkind.Internal, err, "failed to insert fundamentals rows")
	}
	if inserted <= 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "no rows inserted from %s", path)
	}

	if err := imp.store.AppendAuditEvent(traceID, "data.import.fundamentals", map[string]interface{}{
		"source_path": path, "rows_inserted": inserted, "dataset_hash": datasetHash,
	}); err != nil {
		imp.log.Warn().Err(err).Str("path", path).Msg("failed to append import audit event")
	}

	return Result{SourcePath: path, RowsInserted: inserted, DatasetHash: datasetHash}, nil
}
