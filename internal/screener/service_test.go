package screener

import (
	"fmt"
	"testing"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *analytics.Store) {
	t.Helper()
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Name: "analytics",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := analytics.New(db, zerolog.Nop())
	require.NoError(t, err)

	return New(store.Conn()), store
}

func seedDailyCloses(t *testing.T, s *analytics.Store, symbol string, closes []float64) {
	t.Helper()
	rows := make([]analytics.OHLCVRow, len(closes))
	for i, c := range closes {
		day := fmt.Sprintf("2024-01-%02dT00:00:00Z", i+1)
		rows[i] = analytics.OHLCVRow{
			Symbol: symbol, Timestamp: day, PublishedAt: day,
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
			SourceFile: "test.csv", DatasetHash: "hash", IngestedAt: day,
		}
	}
	_, err := s.PutOHLCVRows(rows)
	require.NoError(t, err)
}

func TestRunFormulaScreenFiltersAndRanks(t *testing.T) {
	e, store := newTestEngine(t)
	seedDailyCloses(t, store, "AAA", []float64{10, 11, 12, 13, 14})
	seedDailyCloses(t, store, "BBB", []float64{50, 49, 48, 47, 46})

	result, err := e.RunFormulaScreen(Request{
		Formula: "close > 20", AsOf: "2024-01-05", Universe: []string{"AAA", "BBB"}, TopK: 10,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "BBB", result.Rows[0]["symbol"])
	assert.Equal(t, []string{"close"}, result.Identifiers)
}

func TestRunFormulaScreenOrdersByRankByAscending(t *testing.T) {
	e, store := newTestEngine(t)
	seedDailyCloses(t, store, "AAA", []float64{10, 11, 12, 13, 14})
	seedDailyCloses(t, store, "BBB", []float64{50, 49, 48, 47, 46})

	result, err := e.RunFormulaScreen(Request{
		Formula: "close > 0", AsOf: "2024-01-05", Universe: []string{"AAA", "BBB"}, TopK: 10,
		RankBy: "close", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "AAA", result.Rows[0]["symbol"])
	assert.Equal(t, "BBB", result.Rows[1]["symbol"])
}

func TestRunFormulaScreenRejectsEmptyUniverse(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.RunFormulaScreen(Request{Formula: "close > 0", AsOf: "2024-01-05", TopK: 10})
	assert.Error(t, err)
}

func TestRunFormulaScreenRejectsNonPositiveTopK(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.RunFormulaScreen(Request{Formula: "close > 0", AsOf: "2024-01-05", Universe: []string{"AAA"}, TopK: 0})
	assert.Error(t, err)
}

func TestRunFormulaScreenRejectsInvalidSortOrder(t *testing.T) {
	e, store := newTestEngine(t)
	seedDailyCloses(t, store, "AAA", []float64{10})
	_, err := e.RunFormulaScreen(Request{
		Formula: "close > 0", AsOf: "2024-01-01", Universe: []string{"AAA"}, TopK: 10, SortOrder: "sideways",
	})
	assert.Error(t, err)
}
