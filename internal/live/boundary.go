package live

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/errkind"
)

// BoundaryCandidates returns the top_k snapshot rows minimizing
// abs_distance_to_boundary, tie-breaking lexicographically by symbol.
func BoundaryCandidates(rows []Row, topK int) ([]Row, error) {
	if topK <= 0 {
		return nil, errkind.New(errkind.Invalid, "top_k must be positive")
	}

	ordered := make([]Row, len(rows))
	copy(ordered, rows)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].AbsDistanceToBoundary != ordered[j].AbsDistanceToBoundary {
			return ordered[i].AbsDistanceToBoundary < ordered[j].AbsDistanceToBoundary
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	if topK > len(ordered) {
		topK = len(ordered)
	}
	return ordered[:topK], nil
}

// WriteBoundaryChart renders the boundary-distance line chart artifact for
// a set of candidates and returns its path.
func (e *Engine) WriteBoundaryChart(strategyVersionID string, candidates []Row) (string, error) {
	if len(candidates) == 0 {
		return "", errkind.New(errkind.Invalid, "candidates must not be empty")
	}

	dir := filepath.Join(e.artifactsDir, "boundary")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errkind.Wrap(errkind.Internal, err, "failed to create boundary artifacts directory")
	}

	labels := make([]string, len(candidates))
	values := make([]float64, len(candidates))
	for i, c := range candidates {
		labels[i] = c.Symbol
		values[i] = c.DistanceToBoundary
	}

	stamp := time.Now().UTC().Format("20060102150405.000000")
	path := filepath.Join(dir, fmt.Sprintf("boundary-%s-%s.svg", strategyVersionID, stamp))
	title := fmt.Sprintf("Boundary Distance - %s", strategyVersionID)
	if err := backtest.WriteLineChartSVG(path, title, labels, values); err != nil {
		return "", err
	}
	return path, nil
}
