package session

import (
	"fmt"
	"testing"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Name: "state",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db, zerolog.Nop(), "")
	require.NoError(t, err)

	return New(s)
}

func TestSnapshotAndRehydrate(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Snapshot("sess-1", map[string]interface{}{"positions": map[string]interface{}{"AAA": 10.0}})
	require.NoError(t, err)

	result, err := l.Rehydrate("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, map[string]interface{}{"AAA": 10.0}, result.State["positions"])
	assert.Empty(t, result.RecentToolDeltas)
}

func TestRehydrateFailsWithNoSnapshots(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Rehydrate("missing-session")
	assert.Error(t, err)
}

func TestDiffRequiresTwoSnapshots(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Snapshot("sess-1", map[string]interface{}{"a": 1.0})
	require.NoError(t, err)

	_, err = l.Diff("sess-1")
	assert.Error(t, err)
}

func TestDiffDetectsAddedRemovedChanged(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Snapshot("sess-1", map[string]interface{}{
		"a": 1.0,
		"b": 2.0,
		"nested": map[string]interface{}{"x": 1.0},
	})
	require.NoError(t, err)

	_, err = l.Snapshot("sess-1", map[string]interface{}{
		"a":      1.0,
		"c":      3.0,
		"nested": map[string]interface{}{"x": 2.0},
	})
	require.NoError(t, err)

	result, err := l.Diff("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChangeCount)

	byPath := make(map[string]Change, len(result.Changes))
	for _, c := range result.Changes {
		byPath[c.Path] = c
	}

	require.Contains(t, byPath, "b")
	assert.Equal(t, Removed, byPath["b"].ChangeType)

	require.Contains(t, byPath, "c")
	assert.Equal(t, Added, byPath["c"].ChangeType)

	require.Contains(t, byPath, "nested.x")
	assert.Equal(t, Changed, byPath["nested.x"].ChangeType)
	assert.Equal(t, 1.0, byPath["nested.x"].Before)
	assert.Equal(t, 2.0, byPath["nested.x"].After)
}

func TestDiffOrdersChangesByPath(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Snapshot("sess-1", map[string]interface{}{"z": 1.0, "a": 1.0})
	require.NoError(t, err)
	_, err = l.Snapshot("sess-1", map[string]interface{}{"z": 2.0, "a": 2.0})
	require.NoError(t, err)

	result, err := l.Diff("sess-1")
	require.NoError(t, err)
	require.Len(t, result.Changes, 2)
	assert.Equal(t, "a", result.Changes[0].Path)
	assert.Equal(t, "z", result.Changes[1].Path)
}

func TestRecordToolDeltaPersists(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.RecordToolDelta("sess-1", "fetch_quote",
		map[string]interface{}{"price": 10.0},
		map[string]interface{}{"price": 11.0},
	)
	require.NoError(t, err)

	result, err := l.Rehydrate("sess-1")
	require.Error(t, err) // no snapshot taken yet, only a tool delta
	assert.Nil(t, result)
}

func TestRecordToolDeltaRejectsEmptySessionID(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.RecordToolDelta("", "fetch_quote", nil, nil)
	assert.Error(t, err)
}
