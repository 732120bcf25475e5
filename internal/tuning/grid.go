package tuning

import (
	"math"
	"sort"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

// candidateValuesFromAnchor returns the values a parameter should take at
// the given layer. Choice parameters and stepped ranges return the same
// full list (choices, or the step-driven grid) at every layer, whatever the
// anchors. An unstepped range with no anchors samples min/mid/max; with
// anchors it narrows around their values with radius (max-min)/2^(layer+1).
func candidateValuesFromAnchor(spec ParameterSpec, layer int, anchors []map[string]interface{}) ([]interface{}, error) {
	if spec.Kind == "choice" {
		return dedupeValues(spec.Choices), nil
	}

	span := spec.Max - spec.Min
	if span < 0 {
		return nil, errkind.Newf(errkind.Invalid, "parameter %s has max < min", spec.Name)
	}

	if spec.HasStep {
		values := make([]float64, 0)
		current := spec.Min
		for current <= spec.Max+1e-9 {
			values = append(values, roundToStep(current, spec.Step))
			current += spec.Step
		}
		if len(values) == 0 || values[len(values)-1] < spec.Max-1e-9 {
			// Append the raw endpoint, unsnapped: the step may not divide the
			// range evenly, and the boundary still needs to be reachable.
			values = append(values, spec.Max)
		}
		return dedupeSteppedFloats(values, spec), nil
	}

	if span == 0 {
		return []interface{}{coerceParamForGrid(spec, spec.Min)}, nil
	}

	if len(anchors) == 0 {
		mid := spec.Min + span/2.0
		return dedupeFloats([]float64{spec.Min, mid, spec.Max}, spec), nil
	}

	radius := span / math.Pow(2, float64(layer+1))
	seen := make(map[float64]bool)
	var values []float64
	for _, anchor := range anchors {
		anchorValue, ok := anchor[spec.Name]
		if !ok {
			continue
		}
		anchorFloat, ok := toFloat64(anchorValue)
		if !ok {
			continue
		}
		for _, delta := range []float64{0, -radius, radius} {
			candidate := anchorFloat + delta
			if candidate < spec.Min {
				candidate = spec.Min
			}
			if candidate > spec.Max {
				candidate = spec.Max
			}
			if !seen[candidate] {
				seen[candidate] = true
				values = append(values, candidate)
			}
		}
	}
	if len(values) == 0 {
		mid := spec.Min + span/2.0
		values = []float64{spec.Min, mid, spec.Max}
	}
	sort.Float64s(values)
	return dedupeFloats(values, spec), nil
}

func dedupeValues(values []interface{}) []interface{} {
	seen := make(map[string]bool, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		key := fmtParam("", v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// dedupeSteppedFloats coerces already-computed stepped values to the
// parameter's kind (int_range rounds to int) without re-snapping to the
// step, since the trailing endpoint is deliberately unsnapped.
func dedupeSteppedFloats(values []float64, spec ParameterSpec) []interface{} {
	seen := make(map[float64]bool, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		var coerced interface{}
		if spec.Kind == "int_range" {
			coerced = int(math.Round(v))
		} else {
			coerced = v
		}
		key, _ := toFloat64(coerced)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, coerced)
	}
	return out
}

func dedupeFloats(values []float64, spec ParameterSpec) []interface{} {
	seen := make(map[float64]bool, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		coerced := coerceParamForGrid(spec, v)
		key, _ := toFloat64(coerced)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, coerced)
	}
	return out
}

func roundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return roundTo(math.Round(value/step)*step, 10)
}

func roundTo(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}

func coerceParamForGrid(spec ParameterSpec, value float64) interface{} {
	switch spec.Kind {
	case "int_range":
		return int(math.Round(roundToStep(value, spec.Step)))
	default:
		return roundToStep(value, spec.Step)
	}
}

// generateParamGrid returns the cartesian product of every parameter's
// candidate values at the given layer.
func generateParamGrid(specs []ParameterSpec, layer int, anchors []map[string]interface{}) ([]map[string]interface{}, error) {
	valueLists := make([][]interface{}, len(specs))
	for i, spec := range specs {
		values, err := candidateValuesFromAnchor(spec, layer, anchors)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, errkind.Newf(errkind.Invalid, "failed to generate candidate values for parameter %s", spec.Name)
		}
		valueLists[i] = values
	}

	grid := []map[string]interface{}{{}}
	for i, values := range valueLists {
		next := make([]map[string]interface{}, 0, len(grid)*len(values))
		for _, existing := range grid {
			for _, v := range values {
				merged := make(map[string]interface{}, len(existing)+1)
				for k, vv := range existing {
					merged[k] = vv
				}
				merged[specs[i].Name] = v
				next = append(next, merged)
			}
		}
		grid = next
	}
	return grid, nil
}

// candidateKey is a stable dedup key: parameter names sorted, joined with
// their values. Equivalent candidates (same params, any order) collide.
func candidateKey(params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmtParam(name, params[name])
	}
	return strings.Join(parts, "|")
}
