package worldstate

import (
	"fmt"
	"testing"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) (*Builder, *analytics.Store) {
	t.Helper()
	analyticsDB, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s_analytics?mode=memory&cache=shared", t.Name()),
		Name: "analytics",
	})
	require.NoError(t, err)
	t.Cleanup(func() { analyticsDB.Close() })
	analyticsStore, err := analytics.New(analyticsDB, zerolog.Nop())
	require.NoError(t, err)

	stateDB, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s_state?mode=memory&cache=shared", t.Name()),
		Name: "state",
	})
	require.NoError(t, err)
	t.Cleanup(func() { stateDB.Close() })
	stateStore, err := store.New(stateDB, zerolog.Nop(), "")
	require.NoError(t, err)

	return New(analyticsStore, stateStore, zerolog.Nop()), analyticsStore
}

func seedOHLCV(t *testing.T, s *analytics.Store, symbol, ts, pub string, close float64) {
	t.Helper()
	_, err := s.PutOHLCVRows([]analytics.OHLCVRow{{
		Symbol: symbol, Timestamp: ts, PublishedAt: pub,
		Open: close, High: close, Low: close, Close: close, Volume: 100,
		SourceFile: "test.csv", DatasetHash: "hash", IngestedAt: "2024-01-01T00:00:00Z",
	}})
	require.NoError(t, err)
}
