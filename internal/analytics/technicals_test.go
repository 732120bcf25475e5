package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySMAMatchesManualAverage(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutOHLCVRows([]OHLCVRow{
		row("AAA", "2024-01-01", "2024-01-01", 10),
		row("AAA", "2024-01-02", "2024-01-02", 20),
		row("AAA", "2024-01-03", "2024-01-03", 30),
	})
	require.NoError(t, err)

	sma, err := s.QuerySMA("AAA", "2024-01-01", "2024-01-31", 2)
	require.NoError(t, err)
	require.Len(t, sma, 3)
	assert.Equal(t, float64(10), sma[0])
	assert.Equal(t, float64(15), sma[1])
	assert.Equal(t, float64(25), sma[2])
}

func TestSmaSeriesMatchesQuerySMAOverSameWindow(t *testing.T) {
	closes := []float64{10, 20, 30, 40}
	sma := SmaSeries(closes, 2)
	require.Len(t, sma, 4)
	assert.InDelta(t, 15, sma[1], 0.0001)
	assert.InDelta(t, 25, sma[2], 0.0001)
	assert.InDelta(t, 35, sma[3], 0.0001)
}

func TestBackfillTechnicalsPersistsAndCounts(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutOHLCVRows([]OHLCVRow{
		row("AAA", "2024-01-01", "2024-01-01", 10),
		row("AAA", "2024-01-02", "2024-01-02", 20),
		row("AAA", "2024-01-03", "2024-01-03", 30),
		row("AAA", "2024-01-04", "2024-01-04", 40),
	})
	require.NoError(t, err)

	inserted, err := s.BackfillTechnicals([]string{"AAA"}, "2024-01-01", "2024-01-31", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)

	counts, err := s.CountTechnicalsBySymbol([]string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 4, counts["AAA"])
	assert.Equal(t, 0, counts["BBB"])

	// Re-running the backfill replaces rather than accumulates rows.
	inserted, err = s.BackfillTechnicals([]string{"AAA"}, "2024-01-01", "2024-01-31", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)
	counts, err = s.CountTechnicalsBySymbol([]string{"AAA"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 4, counts["AAA"])
}

func TestBackfillTechnicalsRejectsInvalidWindows(t *testing.T) {
	s := newTestStore(t)
	_, err := s.BackfillTechnicals([]string{"AAA"}, "2024-01-01", "2024-01-31", 3, 2)
	assert.Error(t, err)
}
