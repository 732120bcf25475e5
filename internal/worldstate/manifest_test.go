package worldstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildManifestPersistsHashAndRowCount(t *testing.T) {
	b, analyticsStore := newTestBuilder(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01", "2024-01-01", 10)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-02", "2024-01-02", 11)

	m1, err := b.BuildManifest([]string{"AAA"}, "2024-01-01", "2024-01-31", "none")
	require.NoError(t, err)

	m2, err := b.GetManifest(m1.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, m1.DataHash, m2.DataHash)
	assert.Equal(t, 2, m1.RowCount)
}

func TestBuildManifestFailsOnMissingSymbol(t *testing.T) {
	b, analyticsStore := newTestBuilder(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01", "2024-01-01", 10)

	_, err := b.BuildManifest([]string{"AAA", "ZZZ"}, "2024-01-01", "2024-01-31", "none")
	assert.Error(t, err)
}

func TestBuildManifestRejectsUnknownAdjustmentPolicy(t *testing.T) {
	b, analyticsStore := newTestBuilder(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01", "2024-01-01", 10)

	_, err := b.BuildManifest([]string{"AAA"}, "2024-01-01", "2024-01-31", "bogus")
	assert.Error(t, err)
}

func TestBuildManifestHashChangesWithDifferentData(t *testing.T) {
	b, analyticsStore := newTestBuilder(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01", "2024-01-01", 10)

	m1, err := b.BuildManifest([]string{"AAA"}, "2024-01-01", "2024-01-31", "none")
	require.NoError(t, err)

	seedOHLCV(t, analyticsStore, "AAA", "2024-01-02", "2024-01-02", 20)
	m2, err := b.BuildManifest([]string{"AAA"}, "2024-01-01", "2024-01-31", "none")
	require.NoError(t, err)

	assert.NotEqual(t, m1.DataHash, m2.DataHash)
}
