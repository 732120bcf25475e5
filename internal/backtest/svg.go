package backtest

import (
	"fmt"
	"os"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

const (
	svgWidth     = 960
	svgHeight    = 420
	svgMargin    = 40
	svgChartTop  = 70
	svgLineColor = "#22d3ee"
	svgDotColor  = "#f59e0b"
)

// WriteLineChartSVG renders a deterministic line chart: evenly spaced x
// anchors over len(yValues) points, y scaled into [chartTop, chartBottom],
// last point highlighted. Canvas dimensions match the original exactly so
// the emitted markup is byte-for-byte comparable across ports.
func WriteLineChartSVG(path, title string, xLabels []string, yValues []float64) error {
	if len(xLabels) == 0 || len(yValues) == 0 || len(xLabels) != len(yValues) {
		return errkind.New(errkind.Invalid, "invalid chart data")
	}

	chartLeft := float64(svgMargin)
	chartRight := float64(svgWidth - svgMargin)
	chartTop := float64(svgChartTop)
	chartBottom := float64(svgHeight - svgMargin)

	count := len(yValues)
	pointsX := make([]float64, count)
	for i := 0; i < count; i++ {
		if count == 1 {
			pointsX[i] = (chartLeft + chartRight) / 2.0
		} else {
			pointsX[i] = chartLeft + float64(i)*((chartRight-chartLeft)/float64(count-1))
		}
	}
	pointsY := scaleValues(yValues, chartTop, chartBottom)

	segments := make([]string, count)
	for i := range segments {
		segments[i] = fmt.Sprintf("%.2f,%.2f", pointsX[i], pointsY[i])
	}
	polyline := strings.Join(segments, " ")

	lastValue := yValues[len(yValues)-1]
	lastLabel := xLabels[len(xLabels)-1]

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
  <rect x="0" y="0" width="%d" height="%d" fill="#0f172a"/>
  <text x="%d" y="36" fill="#e2e8f0" font-size="22" font-family="monospace">%s</text>
  <line x1="%.0f" y1="%.2f" x2="%.0f" y2="%.2f" stroke="#334155" stroke-width="1"/>
  <line x1="%.0f" y1="%.2f" x2="%.0f" y2="%.2f" stroke="#334155" stroke-width="1"/>
  <polyline points="%s" fill="none" stroke="%s" stroke-width="2"/>
  <circle cx="%.2f" cy="%.2f" r="4" fill="%s"/>
  <text x="%d" y="%d" fill="#94a3b8" font-size="12" font-family="monospace">last=%s value=%.4f</text>
</svg>
`,
		svgWidth, svgHeight, svgWidth, svgHeight,
		svgWidth, svgHeight,
		svgMargin, title,
		chartLeft, chartBottom, chartRight, chartBottom,
		chartLeft, chartTop, chartLeft, chartBottom,
		polyline, svgLineColor,
		pointsX[len(pointsX)-1], pointsY[len(pointsY)-1], svgDotColor,
		svgMargin, svgHeight-12, lastLabel, lastValue,
	)

	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return errkind.Wrap(errkind.Internal, err, "failed to write chart svg")
	}
	return nil
}

// scaleValues maps values linearly into [low, high], inverted (largest value
// maps to low) so the chart reads top-down like a price axis. A flat series
// (all values equal) maps to the midpoint for every point.
func scaleValues(values []float64, low, high float64) []float64 {
	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(values))
	if maxV == minV {
		mid := (low + high) / 2.0
		for i := range out {
			out[i] = mid
		}
		return out
	}
	for i, v := range values {
		out[i] = high - ((v-minV)/(maxV-minV))*(high-low)
	}
	return out
}
