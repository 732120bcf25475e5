// Package sandbox executes untrusted user strategy code (C6) in a distinct
// OS process subject to CPU-time, address-space, and wall-clock limits,
// writing a single JSON result file under a per-run artifact directory.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/google/uuid"
)

// WorkerSubcommand is the hidden os.Args[1] value that re-execs this same
// binary into sandbox worker mode. cmd/server/main.go checks for it before
// doing any other startup work.
const WorkerSubcommand = "__sandbox_worker__"

// Input is the JSON bundle piped to the sandboxed child's stdin.
type Input struct {
	SourceCode string                 `json:"source_code"`
	DataBundle map[string]interface{} `json:"data_bundle"`
	Frame      []map[string]interface{} `json:"frame"`
	Context    map[string]interface{} `json:"context"`
}

// Limits bounds the child process.
type Limits struct {
	TimeoutSeconds float64
	MemoryMB       int64
	CPUSeconds     int64
}

// Outputs is the shape-checked result of invoking the three strategy entry
// points, per spec.
type Outputs struct {
	Prepared     interface{} `json:"prepared"`
	Signals      interface{} `json:"signals"`
	Risk         interface{} `json:"risk"`
	PrepareType  string      `json:"prepare_type"`
	SignalsType  string      `json:"signals_type"`
	RiskType     string      `json:"risk_type"`
	SignalsCount int         `json:"signals_count"`
}

// Result is the sandbox run's success outcome.
type Result struct {
	Status     string  `json:"status"`
	RunID      string  `json:"run_id"`
	ResultPath string  `json:"result_path"`
	Outputs    Outputs `json:"outputs"`
}

// Run spawns a child process to execute input.SourceCode's three entry
// points and returns the shape-checked result, or a typed error for one of
// the spec's named failure modes (timeout, resource_limit_exceeded,
// write_outside_artifact_dir, exec_failure).
func Run(ctx context.Context, input Input, limits Limits, artifactRootDir string) (*Result, error) {
	runID := uuid.NewString()
	artifactDir := filepath.Join(artifactRootDir, runID)
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to create sandbox artifact directory")
	}

	stdin, err := json.Marshal(input)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal sandbox input")
	}

	timeout := time.Duration(limits.TimeoutSeconds * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, os.Args[0], WorkerSubcommand,
		artifactDir,
		strconv.FormatInt(limits.CPUSeconds, 10),
		strconv.FormatInt(limits.MemoryMB, 10),
	)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = scrubbedEnviron()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errkind.Newf(errkind.SandboxTimeout, "sandbox run %s exceeded timeout of %.1fs", runID, limits.TimeoutSeconds).
			WithRemediation("reduce strategy complexity or raise timeout_seconds")
	}
	if runErr != nil {
		msg := stderr.String()
		if isWriteOutsideArtifactDir(msg) {
			return nil, errkind.New(errkind.SandboxPolicy, msg).
				WithRemediation("strategy code must only write inside its artifact directory")
		}
		if isResourceLimitExceeded(msg) {
			return nil, errkind.Newf(errkind.SandboxResourceExceeded, "sandbox run %s exceeded resource limits: %s", runID, msg).
				WithRemediation("reduce memory_mb/cpu_seconds usage or raise the configured limits")
		}
		return nil, errkind.Wrap(errkind.SandboxPolicy, runErr, fmt.Sprintf("sandbox exec failure: %s", msg))
	}

	resultPath := filepath.Join(artifactDir, "result.json")
	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "sandbox worker did not produce a result file")
	}
	var outputs Outputs
	if err := json.Unmarshal(raw, &outputs); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to parse sandbox result file")
	}

	return &Result{Status: "completed", RunID: runID, ResultPath: resultPath, Outputs: outputs}, nil
}

func scrubbedEnviron() []string {
	return []string{
		"PATH=/usr/bin:/bin",
		"LANG=C",
	}
}

func isWriteOutsideArtifactDir(stderr string) bool {
	return bytes.Contains([]byte(stderr), []byte("write outside artifact dir blocked"))
}

func isResourceLimitExceeded(stderr string) bool {
	return bytes.Contains([]byte(stderr), []byte("resource limit exceeded")) ||
		bytes.Contains([]byte(stderr), []byte("signal: killed")) ||
		bytes.Contains([]byte(stderr), []byte("signal: segmentation fault"))
}
