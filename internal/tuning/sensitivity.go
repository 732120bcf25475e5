package tuning

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// SensitivityEntry reports, for one parameter, the best rival candidate
// that differs from the baseline only in that parameter's value.
type SensitivityEntry struct {
	BaselineValue     interface{} `json:"baseline_value"`
	AlternativeValue  interface{} `json:"alternative_value,omitempty"`
	BaselineScore     float64     `json:"baseline_score,omitempty"`
	AlternativeScore  float64     `json:"alternative_score,omitempty"`
	ScoreDelta        float64     `json:"score_delta,omitempty"`
	AlternativeRunID  string      `json:"alternative_run_id,omitempty"`
	Status            string      `json:"status"`
}

// SensitivitySummary aggregates score_delta across every parameter with an
// "ok" rival, so a caller can see at a glance how sharply the winning
// candidate's score falls off under local perturbation without scanning
// every per-parameter entry.
type SensitivitySummary struct {
	ParameterCount      int     `json:"parameter_count"`
	MeanScoreDelta      float64 `json:"mean_score_delta"`
	StdDevScoreDelta    float64 `json:"stddev_score_delta"`
}

// summarizeSensitivity computes mean/stddev of score_delta across every
// resolved ("ok") parameter entry via gonum/stat.MeanStdDev, which - unlike
// the hand-rolled population variance in backtest/metrics.go - is exactly
// what's wanted here: an unbiased sample estimate over a handful of
// independently sampled rival candidates, not a population statistic over
// the full return series.
func summarizeSensitivity(entries map[string]SensitivityEntry) SensitivitySummary {
	deltas := make([]float64, 0, len(entries))
	for _, entry := range entries {
		if entry.Status != "ok" {
			continue
		}
		deltas = append(deltas, entry.ScoreDelta)
	}
	if len(deltas) == 0 {
		return SensitivitySummary{}
	}
	mean, stdDev := stat.MeanStdDev(deltas, nil)
	return SensitivitySummary{ParameterCount: len(deltas), MeanScoreDelta: mean, StdDevScoreDelta: stdDev}
}

// sensitivityAnalysis walks every parameter the winning candidate declared
// and finds, among every other evaluated candidate, the best-scoring one
// that holds all other parameters equal to the baseline's and differs only
// in that single parameter. Parameters with no such rival are reported as
// insufficient_local_samples rather than silently omitted.
func sensitivityAnalysis(evaluated []Candidate, best Candidate) map[string]SensitivityEntry {
	out := make(map[string]SensitivityEntry, len(best.Params))

	for paramName, baselineValue := range best.Params {
		var bestRival *Candidate
		for i := range evaluated {
			candidate := evaluated[i]
			if candidate.RunID == best.RunID {
				continue
			}
			if paramsEqual(candidate.Params[paramName], baselineValue) {
				continue
			}
			if !matchesContextExcept(candidate.Params, best.Params, paramName) {
				continue
			}
			if bestRival == nil || candidate.Score > bestRival.Score {
				c := candidate
				bestRival = &c
			}
		}

		if bestRival == nil {
			out[paramName] = SensitivityEntry{BaselineValue: baselineValue, Status: "insufficient_local_samples"}
			continue
		}

		out[paramName] = SensitivityEntry{
			BaselineValue:    baselineValue,
			AlternativeValue: bestRival.Params[paramName],
			BaselineScore:    best.Score,
			AlternativeScore: bestRival.Score,
			ScoreDelta:       bestRival.Score - best.Score,
			AlternativeRunID: bestRival.RunID,
			Status:           "ok",
		}
	}
	return out
}

func matchesContextExcept(candidate, baseline map[string]interface{}, exceptName string) bool {
	for name, value := range baseline {
		if name == exceptName {
			continue
		}
		if !paramsEqual(candidate[name], value) {
			return false
		}
	}
	return true
}

func paramsEqual(a, b interface{}) bool {
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
