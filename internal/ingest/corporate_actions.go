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

var corporateActionRequiredColumns = []string{"symbol", "effective_at", "action_type"}

// ImportCorporateActionsFile loads a corporate-actions CSV.
func (imp *Importer) ImportCorporateActionsFile(path, traceID string) (Result, error) {
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
	if missing := missingColumns(header, corporateActionRequiredColumns); len(missing) > 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "missing required columns: %v", missing)
	}
	idx := columnIndex(header)

	now := nowRFC3339()
	var rows []analytics.CorporateActionRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, errkind.Wrap(errkind.Invalid, err, "failed to read data row")
		}
		effectiveAt := record[idx["effective_at"]]
		if effectiveAt == "" {
			return Result{}, errkind.New(errkind.Invalid, "effective_at is required for all rows")
		}

		row := analytics.CorporateActionRow{
			Symbol: record[idx["symbol"]], EffectiveAt: effectiveAt, ActionType: record[idx["action_type"]],
			SourceFile: path, DatasetHash: datasetHash, IngestedAt: now,
		}
		if v, ok := idx["action_value"]; ok && record[v] != "" {
			if f, err := strconv.ParseFloat(record[v], 64); err == nil {
				row.ActionValue = sql.NullFloat64{Float64: f, Valid: true}
			}
		}
		rows = append(rows, row)
	}

	inserted, err := imp.analytics.PutCorporateActionRows(rows)
	if err != nil {
		return Result{}, errkind.Wrap(errkind.Internal, err, "failed to insert corporate action rows")
	}
	if inserted <= 0 {
		return Result{}, errkind.Newf(errkind.Invalid, "no rows inserted from %s", path)
	}

	if err := imp.store.AppendAuditEvent(traceID, "data.import.corporate_actions", map[string]interface{}{
		"source_path": path, "rows_inserted": inserted, "dataset_hash": datasetHash,
	}); err != nil {
		imp.log.Warn().Err(err).Str("path", path).Msg("failed to append import audit event")
	}

	return Result{SourcePath: path, RowsInserted: inserted, DatasetHash: datasetHash}, nil
}
