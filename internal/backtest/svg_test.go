package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLineChartSVGProducesValidCanvas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.svg")
	err := WriteLineChartSVG(path, "Equity", []string{"2024-01-01", "2024-01-02"}, []float64{100, 110})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `width="960" height="420"`)
	assert.Contains(t, string(contents), "Equity")
	assert.Contains(t, string(contents), "last=2024-01-02")
}

func TestWriteLineChartSVGRejectsMismatchedLengths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.svg")
	err := WriteLineChartSVG(path, "Equity", []string{"2024-01-01"}, []float64{100, 110})
	assert.Error(t, err)
}
