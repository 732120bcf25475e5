package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dop251/goja"
)

// RunWorker is the entry point cmd/server/main.go invokes when os.Args[1]
// == WorkerSubcommand. It reads the Input bundle from stdin, installs
// resource limits, evaluates the strategy source in a guarded goja runtime,
// and writes result.json to the artifact directory. Any failure is printed
// to stderr and the process exits non-zero; the parent classifies the
// failure from the message.
func RunWorker(args []string, stdin io.Reader) int {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "sandbox worker: missing artifact_dir/cpu_seconds/memory_mb arguments")
		return 1
	}
	artifactDir := args[0]
	cpuSeconds, _ := strconv.ParseInt(args[1], 10, 64)
	memoryMB, _ := strconv.ParseInt(args[2], 10, 64)

	if err := setRlimits(cpuSeconds, memoryMB); err != nil {
		fmt.Fprintf(os.Stderr, "resource limit exceeded: failed to install rlimits: %v\n", err)
		return 1
	}

	raw, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox worker: failed to read stdin: %v\n", err)
		return 1
	}
	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox worker: failed to parse input: %v\n", err)
		return 1
	}

	outputs, err := evaluate(input, artifactDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	resultJSON, err := json.Marshal(outputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox worker: failed to marshal result: %v\n", err)
		return 1
	}
	if err := os.WriteFile(filepath.Join(artifactDir, "result.json"), resultJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox worker: failed to write result file: %v\n", err)
		return 1
	}
	return 0
}

func evaluate(input Input, artifactDir string) (*Outputs, error) {
	vm := goja.New()
	registerWriteFileGuard(vm, artifactDir)

	program, err := goja.Compile("<code_strategy>", input.SourceCode, false)
	if err != nil {
		return nil, fmt.Errorf("exec_failure: syntax error in source_code: %w", err)
	}
	if _, err := vm.RunProgram(program); err != nil {
		return nil, fmt.Errorf("exec_failure: failed to load strategy source: %w", err)
	}

	prepareFn, ok := goja.AssertFunction(vm.Get("prepare"))
	if !ok {
		return nil, fmt.Errorf("exec_failure: missing required function: prepare")
	}
	signalsFn, ok := goja.AssertFunction(vm.Get("generate_signals"))
	if !ok {
		return nil, fmt.Errorf("exec_failure: missing required function: generate_signals")
	}
	riskFn, ok := goja.AssertFunction(vm.Get("risk_rules"))
	if !ok {
		return nil, fmt.Errorf("exec_failure: missing required function: risk_rules")
	}

	dataBundle := vm.ToValue(input.DataBundle)
	context := vm.ToValue(input.Context)
	frame := vm.ToValue(input.Frame)

	prepared, err := prepareFn(goja.Undefined(), dataBundle, context)
	if err != nil {
		return nil, fmt.Errorf("exec_failure: prepare raised an exception: %w", err)
	}

	signals, err := signalsFn(goja.Undefined(), frame, prepared, context)
	if err != nil {
		return nil, fmt.Errorf("exec_failure: generate_signals raised an exception: %w", err)
	}

	positions := vm.NewArray()
	risk, err := riskFn(goja.Undefined(), positions, context)
	if err != nil {
		return nil, fmt.Errorf("exec_failure: risk_rules raised an exception: %w", err)
	}

	signalsCount := 0
	if obj := signals.ToObject(vm); obj != nil && obj.ClassName() == "Array" {
		signalsCount = int(obj.Get("length").ToInteger())
	}

	return &Outputs{
		Prepared: prepared.Export(), Signals: signals.Export(), Risk: risk.Export(),
		PrepareType: jsTypeOf(prepared), SignalsType: jsTypeOf(signals), RiskType: jsTypeOf(risk),
		SignalsCount: signalsCount,
	}, nil
}

func jsTypeOf(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Array" {
		return "array"
	}
	switch v.ExportType().Kind().String() {
	case "map", "slice":
		return "object"
	default:
		return v.ExportType().Kind().String()
	}
}

// registerWriteFileGuard installs a writeFile(path, contents) host function
// that rejects any resolved target outside artifactDir.
func registerWriteFileGuard(vm *goja.Runtime, artifactDir string) {
	absArtifactDir, _ := filepath.Abs(artifactDir)
	vm.Set("writeFile", func(path, contents string) (bool, error) {
		target := path
		if !filepath.IsAbs(target) {
			target = filepath.Join(artifactDir, target)
		}
		absTarget, err := filepath.Abs(target)
		if err != nil {
			return false, fmt.Errorf("write outside artifact dir blocked: %s", path)
		}
		rel, err := filepath.Rel(absArtifactDir, absTarget)
		if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
			return false, fmt.Errorf("write outside artifact dir blocked: %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(absTarget), 0755); err != nil {
			return false, err
		}
		if err := os.WriteFile(absTarget, []byte(contents), 0644); err != nil {
			return false, err
		}
		return true, nil
	})
}
