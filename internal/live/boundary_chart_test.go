package live

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBoundaryChartProducesFile(t *testing.T) {
	e, _, _ := newTestEngine(t)
	rows := []Row{
		{Symbol: "AAA", DistanceToBoundary: -0.4},
		{Symbol: "BBB", DistanceToBoundary: 0.4},
	}
	path, err := e.WriteBoundaryChart("version-1", rows)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestWriteBoundaryChartRejectsEmptyCandidates(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.WriteBoundaryChart("version-1", nil)
	assert.Error(t, err)
}
