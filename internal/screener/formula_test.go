package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFormulaSimpleComparison(t *testing.T) {
	c, err := CompileFormula("close > 100", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "(close > 100)", c.SQLExpression)
	assert.Equal(t, []string{"close"}, c.Identifiers)
}

func TestCompileFormulaBooleanAndOr(t *testing.T) {
	c, err := CompileFormula("close > 100 and volume > 1000 or symbol = 'AAA'", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "(((close > 100) AND (volume > 1000)) OR (symbol = 'AAA'))", c.SQLExpression)
	assert.ElementsMatch(t, []string{"close", "volume", "symbol"}, c.Identifiers)
}

func TestCompileFormulaNotAndParens(t *testing.T) {
	c, err := CompileFormula("not (close < open)", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "(NOT (close < open))", c.SQLExpression)
}

func TestCompileFormulaArithmeticPrecedence(t *testing.T) {
	c, err := CompileFormula("sma_short - sma_long > 0", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "((sma_short - sma_long) > 0)", c.SQLExpression)
}

func TestCompileFormulaChainedComparison(t *testing.T) {
	c, err := CompileFormula("0 < close <= 100", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "((0 < close) AND (close <= 100))", c.SQLExpression)
}

func TestCompileFormulaStringLiteralEscaping(t *testing.T) {
	c, err := CompileFormula("symbol = 'O''Brien'", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "(symbol = 'O''Brien')", c.SQLExpression)
}

func TestCompileFormulaRejectsUnknownIdentifier(t *testing.T) {
	_, err := CompileFormula("ticker = 'AAA'", AllowedColumns)
	assert.Error(t, err)
}

func TestCompileFormulaRejectsEmptyFormula(t *testing.T) {
	_, err := CompileFormula("   ", AllowedColumns)
	assert.Error(t, err)
}

func TestCompileFormulaRejectsTrailingGarbage(t *testing.T) {
	_, err := CompileFormula("close > 100 )", AllowedColumns)
	assert.Error(t, err)
}

func TestCompileFormulaRejectsUnterminatedString(t *testing.T) {
	_, err := CompileFormula("symbol = 'AAA", AllowedColumns)
	assert.Error(t, err)
}

func TestCompileFormulaUnaryMinus(t *testing.T) {
	c, err := CompileFormula("return_1d_pct > -5", AllowedColumns)
	require.NoError(t, err)
	assert.Equal(t, "(return_1d_pct > (-5))", c.SQLExpression)
}
