package store

import (
	"testing"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetWorldStateManifest(t *testing.T) {
	s := newTestStore(t, "")

	m := WorldStateManifest{
		ManifestID: "m1", Universe: `["AAA","BBB"]`, StartDate: "2024-01-01", EndDate: "2024-01-31",
		AdjustmentPolicy: "none", DataHash: "abc123", RowCount: 20,
		FundamentalsRowCount: 2, CorporateActionsRowCount: 0, RatingsRowCount: 1, CreatedAt: "2024-02-01T00:00:00Z",
	}
	require.NoError(t, s.SaveWorldStateManifest(m))

	got, err := s.GetWorldStateManifest("m1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.DataHash)
	assert.Equal(t, 20, got.RowCount)
}

func TestGetWorldStateManifestNotFound(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.GetWorldStateManifest("missing")
	require.Error(t, err)
	assert.Equal(t, errkind.NotFound, errkind.KindOf(err))
}

func TestSaveWorldStateManifestDuplicateIDIsConflict(t *testing.T) {
	s := newTestStore(t, "")

	m := WorldStateManifest{ManifestID: "m1", Universe: `["AAA"]`, StartDate: "2024-01-01", EndDate: "2024-01-31",
		AdjustmentPolicy: "none", DataHash: "h", RowCount: 1, CreatedAt: "2024-01-01T00:00:00Z"}
	require.NoError(t, s.SaveWorldStateManifest(m))

	err := s.SaveWorldStateManifest(m)
	require.Error(t, err)
	assert.Equal(t, errkind.Conflict, errkind.KindOf(err))
}
