package worldstate

import (
	"fmt"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
)

// PITValidationReport reports whether a universe/date-range selection is
// safe to freeze into a manifest: every symbol covered, no future
// publication leaks.
type PITValidationReport struct {
	Universe    []string
	StartDate   string
	EndDate     string
	StrictMode  bool
	Valid       bool
	Errors      []string
	Remediation []string
	LeakRows    int
}

// ValidatePIT checks universe/[start,end] for missing symbols and
// published_at > timestamp leaks. In strict mode, an invalid result is
// returned as an error with every accumulated remediation string.
func (b *Builder) ValidatePIT(universe []string, startDate, endDate string, strictMode bool) (*PITValidationReport, error) {
	if len(universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "universe must not be empty")
	}

	var errs []string
	var remediation []string

	counts, err := b.analytics.CountBySymbol(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to count ohlcv rows by symbol")
	}
	totalRows := 0
	for _, n := range counts {
		totalRows += n
	}
	if totalRows == 0 {
		errs = append(errs, "no market_ohlcv rows available for universe/date range")
		remediation = append(remediation, "import OHLCV data for requested universe/date range")
	}

	var missingSymbols []string
	for _, sym := range universe {
		if counts[sym] == 0 {
			missingSymbols = append(missingSymbols, sym)
		}
	}
	if len(missingSymbols) > 0 {
		errs = append(errs, fmt.Sprintf("missing rows for symbols: %v", missingSymbols))
		remediation = append(remediation, "import OHLCV rows for all requested symbols")
	}

	leaks, err := b.analytics.DetectPITLeaks(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to detect pit leaks")
	}
	if len(leaks) > 0 {
		errs = append(errs, fmt.Sprintf("future publication leaks detected: %d rows where published_at > timestamp", len(leaks)))
		remediation = append(remediation, "fix source publication timestamps and re-import; published_at must be <= timestamp for PIT safety")
	}

	valid := len(errs) == 0
	report := &PITValidationReport{
		Universe: universe, StartDate: startDate, EndDate: endDate, StrictMode: strictMode,
		Valid: valid, Errors: errs, Remediation: remediation, LeakRows: len(leaks),
	}

	if strictMode && !valid {
		return nil, errkind.New(errkind.Invalid, "PIT validation failed in strict mode: "+strings.Join(errs, "; ")).
			WithRemediation(strings.Join(remediation, " | "))
	}

	return report, nil
}
