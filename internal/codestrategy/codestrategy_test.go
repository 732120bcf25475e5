package codestrategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSource = `
function prepare(dataBundle, context) {
	return {};
}
function generate_signals(frame, state, context) {
	return [{symbol: "AAA", signal: "buy"}];
}
function risk_rules(positions, context) {
	return {};
}
`

func TestValidateAcceptsWellFormedStrategy(t *testing.T) {
	result, err := Validate(validSource)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.ElementsMatch(t, []string{"generate_signals", "prepare", "risk_rules"}, result.RequiredFunctions)
}

func TestValidateRejectsEmptySource(t *testing.T) {
	_, err := Validate("   ")
	assert.Error(t, err)
}

func TestValidateRejectsSyntaxError(t *testing.T) {
	_, err := Validate("function prepare( {")
	assert.Error(t, err)
}

func TestValidateRejectsMissingFunction(t *testing.T) {
	_, err := Validate(`
function prepare(dataBundle, context) { return {}; }
function generate_signals(frame, state, context) { return []; }
`)
	assert.Error(t, err)
}

func TestValidateRejectsWrongArity(t *testing.T) {
	_, err := Validate(`
function prepare(dataBundle) { return {}; }
function generate_signals(frame, state, context) { return []; }
function risk_rules(positions, context) { return {}; }
`)
	assert.Error(t, err)
}

func TestValidateRejectsSignalMissingRequiredKeys(t *testing.T) {
	_, err := Validate(`
function prepare(dataBundle, context) { return {}; }
function generate_signals(frame, state, context) { return [{symbol: "AAA"}]; }
function risk_rules(positions, context) { return {}; }
`)
	assert.Error(t, err, "a signal row missing the 'signal' key must fail the contract check")
}

func TestValidateRejectsNonObjectPrepareReturn(t *testing.T) {
	_, err := Validate(`
function prepare(dataBundle, context) { return 42; }
function generate_signals(frame, state, context) { return []; }
function risk_rules(positions, context) { return {}; }
`)
	assert.Error(t, err)
}
