// Package screener implements the formula screener (C12): a small
// hand-written recursive-descent compiler turns a closed boolean/arithmetic
// expression language over a fixed set of market-data column identifiers
// into a parenthesized SQL predicate, which the runner embeds into a
// window-function query over the analytics store.
package screener

import (
	"sort"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

// AllowedColumns is the closed set of identifiers a formula may reference.
var AllowedColumns = []string{
	"symbol", "timestamp", "open", "high", "low", "close", "volume",
	"sma_short", "sma_long", "sma_gap_pct", "day_range_pct", "return_1d_pct",
}

// Compiled is the result of validating and compiling a formula.
type Compiled struct {
	Valid         bool     `json:"valid"`
	SQLExpression string   `json:"sql_expression"`
	Identifiers   []string `json:"identifiers"`
}

// CompileFormula parses and compiles formula against allowedIdentifiers,
// returning the equivalent parenthesized SQL expression and the sorted set
// of identifiers it actually references.
func CompileFormula(formula string, allowedIdentifiers []string) (*Compiled, error) {
	src := strings.TrimSpace(formula)
	if src == "" {
		return nil, errkind.New(errkind.Invalid, "formula is required")
	}

	allowed := map[string]bool{}
	for _, name := range allowedIdentifiers {
		name = strings.TrimSpace(name)
		if name != "" {
			allowed[name] = true
		}
	}
	if len(allowed) == 0 {
		return nil, errkind.New(errkind.Invalid, "allowed_identifiers must not be empty")
	}

	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, allowed: allowed, seen: map[string]bool{}}
	sql, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, errkind.New(errkind.Invalid, "invalid formula syntax: unexpected trailing input")
	}

	identifiers := make([]string, 0, len(p.seen))
	for name := range p.seen {
		identifiers = append(identifiers, name)
	}
	sort.Strings(identifiers)

	return &Compiled{Valid: true, SQLExpression: sql, Identifiers: identifiers}, nil
}

// ValidateFormula compiles formula against the fixed screener column set.
func ValidateFormula(formula string) (*Compiled, error) {
	return CompileFormula(formula, AllowedColumns)
}
