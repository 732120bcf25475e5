package tuning

import (
	"sort"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

// Objective is the scoring rule a tuning run optimizes against: a primary
// metric name, its direction, and the per-metric weights actually used to
// score a candidate. When the caller supplies no weights, the objective
// collapses to a single-metric score in the requested direction.
type Objective struct {
	Metric   string             `json:"metric"`
	Maximize bool               `json:"maximize"`
	Weights  map[string]float64 `json:"weights"`
}

// parseObjective fills in defaults (maximize sharpe) and normalizes the
// caller-supplied weights map, if any.
func parseObjective(raw map[string]interface{}) (*Objective, error) {
	metric := "sharpe"
	maximize := true

	if raw != nil {
		if m, ok := raw["metric"].(string); ok && strings.TrimSpace(m) != "" {
			metric = strings.TrimSpace(m)
		}
		if mx, ok := raw["maximize"].(bool); ok {
			maximize = mx
		}
	}

	weights := map[string]float64{}
	if raw != nil {
		if rawWeights, ok := raw["weights"]; ok && rawWeights != nil {
			wm, ok := rawWeights.(map[string]interface{})
			if !ok {
				return nil, errkind.New(errkind.Invalid, "objective.weights must be an object")
			}
			if len(wm) == 0 {
				return nil, errkind.New(errkind.Invalid, "objective.weights must not be empty when provided")
			}
			for k, v := range wm {
				key := strings.TrimSpace(k)
				if key == "" {
					return nil, errkind.New(errkind.Invalid, "objective.weights keys must not be blank")
				}
				f, ok := toFloat64(v)
				if !ok {
					return nil, errkind.Newf(errkind.Invalid, "objective.weights.%s must be numeric", k)
				}
				weights[key] = f
			}
		}
	}

	if len(weights) == 0 {
		w := 1.0
		if !maximize {
			w = -1.0
		}
		weights[metric] = w
	}

	return &Objective{Metric: metric, Maximize: maximize, Weights: weights}, nil
}

// metricDirection flips the sign of metrics where a smaller value is
// better (drawdown, stdev, volatility-named metrics), so every weighted
// term can be summed with "higher score is better" semantics.
func metricDirection(name string) float64 {
	lowered := strings.ToLower(name)
	if strings.Contains(lowered, "drawdown") || strings.Contains(lowered, "stdev") || strings.Contains(lowered, "volatility") {
		return -1
	}
	return 1
}

// scoreCandidate sums weight*direction*value across every weighted metric
// present on the candidate. A candidate missing every weighted metric
// cannot be scored.
func scoreCandidate(metrics map[string]float64, objective *Objective) (float64, string, error) {
	score := 0.0
	var used []string
	for metric, weight := range objective.Weights {
		value, ok := metrics[metric]
		if !ok {
			continue
		}
		score += weight * metricDirection(metric) * value
		used = append(used, metric)
	}
	if len(used) == 0 {
		return 0, "", errkind.New(errkind.Invalid, "objective cannot be scored; candidate has none of the weighted metrics")
	}
	sort.Strings(used)
	return score, strings.Join(used, ","), nil
}
