package ingest

import (
	"github.com/aristath/sentinel/internal/errkind"
)

// TechnicalsResult reports a technicals backfill outcome.
type TechnicalsResult struct {
	Universe     []string
	RowsInserted int
}

// BackfillTechnicals computes sma_short/sma_long/ema_short over each
// symbol's close-price series for [startDate, endDate] and persists the
// result, the vectorized ingestion-time technicals pass (not file-based,
// unlike the other importers: it derives from OHLCV rows already stored).
func (imp *Importer) BackfillTechnicals(universe []string, startDate, endDate string, shortWindow, longWindow int, traceID string) (TechnicalsResult, error) {
	inserted, err := imp.analytics.BackfillTechnicals(universe, startDate, endDate, shortWindow, longWindow)
	if err != nil {
		return TechnicalsResult{}, errkind.Wrap(errkind.Invalid, err, "failed to backfill technicals")
	}

	if err := imp.store.AppendAuditEvent(traceID, "data.technicals_backfill", map[string]interface{}{
		"universe": universe, "start_date": startDate, "end_date": endDate, "rows_inserted": inserted,
	}); err != nil {
		imp.log.Warn().Err(err).Msg("failed to append technicals backfill audit event")
	}

	return TechnicalsResult{Universe: universe, RowsInserted: inserted}, nil
}
