package ingest

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/errkind"
)

var ratingsRequiredColumns = []string{"symbol", "revised_at", "agency", "rating"}

// ImportRatingsFile loads an analyst-ratings CSV.
func (imp *Importer) ImportRatingsFile(path, traceID string) (Result, error) {
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
	if missing := missingColumns(header, ratingsRequiredColumns); len(missing) > 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "missing required columns: %v", missing)
	}
	idx := columnIndex(header)

	now := nowRFC3339()
	var rows []analytics.RatingRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to read data row")
		}
		revisedAt := record[idx["revised_at"]]
		if revisedAt == "" {
			return Result{}, errkind.New(errkind.Invalid, "revised_at is required for all rows")
		}

		rows = append(rows, analytics.RatingRow{
			Symbol: record[idx["symbol"]], RevisedAt: revisedAt,
			Agency: record[idx["agency"]], Rating: record[idx["rating"]],
			SourceFile: path, DatasetHash: datasetHash, IngestedAt: now,
		})
	}

	inserted, err := imp.analytics.PutRatingRows(rows)
	if err != nil {
		return Result{}, errkind.Wrap(errkind.Internal, err, "failed to insert rating rows")
	}
	if inserted <= 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "no rows inserted from %s", path)
	}

	if err := imp.store.AppendAuditEvent(traceID, "data.import.ratings", map[string]interface{}{
		"source_path": path, "rows_inserted": inserted, "dataset_hash": datasetHash,
	}); err != nil {
		imp.log.Warn().Err(err).Str("path", path).Msg("failed to append import audit event")
	}

	return Result{SourcePath: path, RowsInserted: inserted, DatasetHash: datasetHash}, nil
}
