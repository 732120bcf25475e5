package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workerTestSource = `
function prepare(dataBundle, context) { return {ready: true}; }
function generate_signals(frame, state, context) { return [{symbol: "AAA", signal: "buy"}]; }
function risk_rules(positions, context) { return {max_position: 1}; }
`

func TestEvaluateProducesShapeCheckedOutputs(t *testing.T) {
	dir := t.TempDir()
	outputs, err := evaluate(Input{SourceCode: workerTestSource, Context: map[string]interface{}{}}, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, outputs.SignalsCount)
	assert.Equal(t, "array", outputs.SignalsType)
	assert.Equal(t, "object", outputs.PrepareType)
}

func TestEvaluateFailsOnSyntaxError(t *testing.T) {
	dir := t.TempDir()
	_, err := evaluate(Input{SourceCode: "function prepare( {"}, dir)
	assert.Error(t, err)
}

func TestEvaluateFailsOnMissingFunction(t *testing.T) {
	dir := t.TempDir()
	_, err := evaluate(Input{SourceCode: "function prepare(a, b) { return {}; }"}, dir)
	assert.Error(t, err)
}

func TestWriteFileGuardAllowsWritesInsideArtifactDir(t *testing.T) {
	dir := t.TempDir()
	source := `
function prepare(dataBundle, context) { writeFile("out.txt", "hello"); return {}; }
function generate_signals(frame, state, context) { return []; }
function risk_rules(positions, context) { return {}; }
`
	_, err := evaluate(Input{SourceCode: source}, dir)
	require.NoError(t, err)
	contents, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestWriteFileGuardBlocksEscapingArtifactDir(t *testing.T) {
	dir := t.TempDir()
	source := `
function prepare(dataBundle, context) { writeFile("../escape.txt", "hello"); return {}; }
function generate_signals(frame, state, context) { return []; }
function risk_rules(positions, context) { return {}; }
`
	_, err := evaluate(Input{SourceCode: source}, dir)
	assert.Error(t, err)
}
