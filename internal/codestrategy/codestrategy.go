// Package codestrategy validates user-authored strategy source (C5): it
// must define prepare/generate_signals/risk_rules with the right arities
// and pass a contract check invoking each with empty arguments.
package codestrategy

import (
	"fmt"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/dop251/goja"
)

// requiredSignatures is the name -> expected parameter count table, mirroring
// the original's REQUIRED_SIGNATURES.
var requiredSignatures = map[string]int{
	"prepare":          2,
	"generate_signals": 3,
	"risk_rules":       2,
}

// ValidationResult is the JSON-shaped outcome persisted alongside a strategy
// version.
type ValidationResult struct {
	Valid              bool     `json:"valid"`
	RequiredFunctions  []string `json:"required_functions"`
}

// Validate parses source_code as JavaScript, checks that prepare,
// generate_signals, and risk_rules are defined with the required arities,
// then runs the contract check: invoking each with empty arguments and
// validating the returned shape.
func Validate(sourceCode string) (*ValidationResult, error) {
	if strings.TrimSpace(sourceCode) == "" {
		return nil, errkind.New(errkind.Invalid, "source_code is empty")
	}

	program, err := goja.Compile("<code_strategy>", sourceCode, false)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "syntax error in source_code")
	}

	vm := goja.New()
	if _, err := vm.RunProgram(program); err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "failed to load strategy source")
	}

	fns := make(map[string]goja.Callable, len(requiredSignatures))
	for name, arity := range requiredSignatures {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) {
			return nil, errkind.Newf(errkind.Invalid, "missing required function: %s", name)
		}
		fn, ok := goja.AssertFunction(val)
		if !ok {
			return nil, errkind.Newf(errkind.Invalid, "missing required function: %s", name)
		}
		obj := val.ToObject(vm)
		length := int(obj.Get("length").ToInteger())
		if length != arity {
			return nil, errkind.Newf(errkind.Invalid, "invalid signature for %s: expected %d args, got %d", name, arity, length)
		}
		fns[name] = fn
	}

	if err := contractCheck(vm, fns); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(requiredSignatures))
	for name := range requiredSignatures {
		names = append(names, name)
	}
	sortStrings(names)

	return &ValidationResult{Valid: true, RequiredFunctions: names}, nil
}

func sortStrings(items []string) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j] < items[j-1]; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func contractCheck(vm *goja.Runtime, fns map[string]goja.Callable) error {
	emptyObj := vm.NewObject()
	emptyArr := vm.NewArray()

	prepareOut, err := fns["prepare"](goja.Undefined(), emptyObj, emptyObj)
	if err != nil {
		return errkind.Wrap(errkind.Invalid, err, "prepare raised exception during contract check")
	}
	prepareObj, ok := asPlainObject(vm, prepareOut)
	if !ok {
		return errkind.New(errkind.Invalid, "prepare must return an object")
	}

	signalsOut, err := fns["generate_signals"](goja.Undefined(), emptyArr, prepareObj, emptyObj)
	if err != nil {
		return errkind.Wrap(errkind.Invalid, err, "generate_signals raised exception during contract check")
	}
	signalRows, ok := asArray(vm, signalsOut)
	if !ok {
		return errkind.New(errkind.Invalid, "generate_signals must return a list")
	}
	for _, rowVal := range signalRows {
		rowObj, ok := asPlainObject(vm, rowVal)
		if !ok {
			return errkind.New(errkind.Invalid, "generate_signals items must be objects")
		}
		var missing []string
		for _, key := range []string{"symbol", "signal"} {
			if goja.IsUndefined(rowObj.Get(key)) {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return errkind.Newf(errkind.Invalid, "generate_signals item missing keys: %v", missing)
		}
	}

	riskOut, err := fns["risk_rules"](goja.Undefined(), emptyArr, emptyObj)
	if err != nil {
		return errkind.Wrap(errkind.Invalid, err, "risk_rules raised exception during contract check")
	}
	if _, ok := asPlainObject(vm, riskOut); !ok {
		return errkind.New(errkind.Invalid, "risk_rules must return an object")
	}

	return nil
}

func asPlainObject(vm *goja.Runtime, v goja.Value) (*goja.Object, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	obj := v.ToObject(vm)
	if obj == nil {
		return nil, false
	}
	if obj.ClassName() == "Array" {
		return nil, false
	}
	return obj, true
}

func asArray(vm *goja.Runtime, v goja.Value) ([]goja.Value, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	obj := v.ToObject(vm)
	if obj == nil || obj.ClassName() != "Array" {
		return nil, false
	}
	length := int(obj.Get("length").ToInteger())
	out := make([]goja.Value, length)
	for i := 0; i < length; i++ {
		out[i] = obj.Get(fmt.Sprintf("%d", i))
	}
	return out, true
}
