package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImporter(t *testing.T) *Importer {
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

	return New(analyticsStore, stateStore, zerolog.Nop())
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportOHLCVFileCopiesTimestampIntoPublishedAt(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "timestamp,symbol,open,high,low,close,volume\n"+
		"2024-01-01,AAA,10,11,9,10.5,1000\n"+
		"2024-01-02,AAA,10.5,12,10,11.5,1200\n")

	res, err := imp.ImportOHLCVFile(path, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsInserted)
	assert.NotEmpty(t, res.DatasetHash)

	rows, err := imp.analytics.QueryOHLCVRange("AAA", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].Timestamp, rows[0].PublishedAt)
}

func TestImportOHLCVFileMissingColumnFails(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "timestamp,symbol,open,high,low,close\n2024-01-01,AAA,10,11,9,10.5\n")

	_, err := imp.ImportOHLCVFile(path, "trace-1")
	assert.Error(t, err)
}

func TestImportOHLCVFileEmptyDataFails(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "timestamp,symbol,open,high,low,close,volume\n")

	_, err := imp.ImportOHLCVFile(path, "trace-1")
	assert.Error(t, err, "zero rows inserted must fail, not silently succeed")
}

func TestImportFundamentalsFileRejectsMissingPublishedAt(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "symbol,published_at,pe_ratio\nAAA,,10.2\n")

	_, err := imp.ImportFundamentalsFile(path, "trace-1")
	assert.Error(t, err)
}

func TestImportFundamentalsFileInsertsAndAudits(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "symbol,published_at,pe_ratio,eps\nAAA,2024-01-01,12.5,1.1\n")

	res, err := imp.ImportFundamentalsFile(path, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsInserted)
}

func TestImportCorporateActionsFileInserts(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "symbol,effective_at,action_type,action_value\nAAA,2024-01-01,split,2.0\n")

	res, err := imp.ImportCorporateActionsFile(path, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsInserted)
}

func TestImportRatingsFileInserts(t *testing.T) {
	imp := newTestImporter(t)
	path := writeCSV(t, "symbol,revised_at,agency,rating\nAAA,2024-01-01,X,buy\n")

	res, err := imp.ImportRatingsFile(path, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsInserted)
}

func TestImportOHLCVFileRejectsUnsupportedExtension(t *testing.T) {
	imp := newTestImporter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "input.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not a csv"), 0644))

	_, err := imp.ImportOHLCVFile(path, "trace-1")
	assert.Error(t, err)
}
