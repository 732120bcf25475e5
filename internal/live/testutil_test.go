package live

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/sandbox"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestMain lets this test binary double as the sandbox worker: BuildSnapshot
// drives the sandbox directly, so the re-exec dispatch must happen here too.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerSubcommand {
		os.Exit(sandbox.RunWorker(os.Args[2:], os.Stdin))
	}
	os.Exit(m.Run())
}

func newTestEngine(t *testing.T) (*Engine, *analytics.Store, *store.Store) {
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

	return New(analyticsStore, stateStore, t.TempDir(), zerolog.Nop()), analyticsStore, stateStore
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
