package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStrategyVersionIncrementsVersionNumber(t *testing.T) {
	s := newTestStore(t, "")

	v1, err := s.SaveStrategyVersion("strat-1", "Momentum", "ver-1", "function generate_signals() {}", `{"ok":true}`)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)

	v2, err := s.SaveStrategyVersion("strat-1", "Momentum", "ver-2", "function generate_signals() { return []; }", `{"ok":true}`)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	latest, err := s.GetLatestStrategyVersion("strat-1")
	require.NoError(t, err)
	assert.Equal(t, "ver-2", latest.ID)
}
