package tuning

import (
	"fmt"
	"sort"

	"github.com/aristath/sentinel/internal/errkind"
)

// ParameterSpec describes one tunable dimension of a search space: either a
// discrete set of choices, or a bounded integer/float range.
type ParameterSpec struct {
	Name    string
	Kind    string // "choice", "int_range", "float_range"
	Min     float64
	Max     float64
	Step    float64
	HasStep bool
	Choices []interface{}
}

// parseSearchSpace turns the request's raw search_space map into an ordered
// list of ParameterSpecs. Parameter order follows Go map iteration sorted by
// name so grid generation is deterministic across runs of the same request.
func parseSearchSpace(raw map[string]interface{}) ([]ParameterSpec, error) {
	if len(raw) == 0 {
		return nil, errkind.New(errkind.Invalid, "search_space must declare at least one parameter")
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]ParameterSpec, 0, len(names))
	for _, name := range names {
		spec, err := parseParameterSpec(name, raw[name])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseParameterSpec(name string, raw interface{}) (ParameterSpec, error) {
	if values, ok := raw.([]interface{}); ok {
		if len(values) == 0 {
			return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s must not be an empty list", name)
		}
		return ParameterSpec{Name: name, Kind: "choice", Choices: values}, nil
	}

	cfg, ok := raw.(map[string]interface{})
	if !ok {
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s must be a list of choices or a range object", name)
	}

	if rawChoices, ok := cfg["choices"]; ok {
		return parseChoiceSpec(name, rawChoices)
	}
	if rawChoices, ok := cfg["values"]; ok {
		return parseChoiceSpec(name, rawChoices)
	}

	kind, _ := cfg["type"].(string)
	if kind == "" {
		kind, _ = cfg["kind"].(string)
	}
	switch kind {
	case "choice", "choices", "categorical":
		rawChoices, ok := cfg["choices"]
		if !ok {
			rawChoices = cfg["values"]
		}
		return parseChoiceSpec(name, rawChoices)
	case "int", "int_range", "integer":
		return parseRangeSpec(name, cfg, "int_range")
	case "float", "float_range":
		return parseRangeSpec(name, cfg, "float_range")
	default:
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s has unknown type %q", name, kind)
	}
}

func parseChoiceSpec(name string, raw interface{}) (ParameterSpec, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s choices must be a non-empty list", name)
	}
	return ParameterSpec{Name: name, Kind: "choice", Choices: values}, nil
}

func parseRangeSpec(name string, cfg map[string]interface{}, kind string) (ParameterSpec, error) {
	minRaw, hasMin := cfg["min"]
	maxRaw, hasMax := cfg["max"]
	if !hasMin || !hasMax {
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s range requires min and max", name)
	}
	minV, ok := toFloat64(minRaw)
	if !ok {
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s.min must be numeric", name)
	}
	maxV, ok := toFloat64(maxRaw)
	if !ok {
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s.max must be numeric", name)
	}
	if maxV < minV {
		return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s.max must be >= min", name)
	}

	spec := ParameterSpec{Name: name, Kind: kind, Min: minV, Max: maxV}
	if stepRaw, ok := cfg["step"]; ok {
		stepV, ok := toFloat64(stepRaw)
		if !ok || stepV <= 0 {
			return ParameterSpec{}, errkind.Newf(errkind.Invalid, "search_space.%s.step must be a positive number", name)
		}
		spec.Step = stepV
		spec.HasStep = true
	}
	return spec, nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func fmtParam(name string, value interface{}) string {
	return fmt.Sprintf("%s=%v", name, value)
}
