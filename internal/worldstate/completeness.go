package worldstate

import (
	"github.com/aristath/sentinel/internal/errkind"
)

// SkippedInstrument names a symbol with no OHLCV coverage in range.
type SkippedInstrument struct {
	Symbol         string
	FallbackReason string
}

// SkippedFeature names a symbol whose OHLCV coverage is too thin to compute
// the requested technical feature window.
type SkippedFeature struct {
	Symbol         string
	Feature        string
	FallbackReason string
}

// CompletenessReport mirrors the original's per-symbol instrument/feature
// coverage report over a requested universe and date range.
type CompletenessReport struct {
	Universe          []string
	StartDate         string
	EndDate           string
	StrictMode        bool
	TotalSymbols      int
	CoveredSymbols    int
	SkippedInstruments []SkippedInstrument
	SkippedFeatures    []SkippedFeature
	FallbackReason     string
}

// BuildCompletenessReport checks per-symbol OHLCV coverage and, for symbols
// with OHLCV rows, whether market_technicals holds any rows for that symbol
// across universe/[start,end]. It counts rows only; it does not check which
// feature columns in them are non-null.
func (b *Builder) BuildCompletenessReport(universe []string, startDate, endDate string, strictMode bool) (*CompletenessReport, error) {
	if len(universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "universe must not be empty")
	}

	counts, err := b.analytics.CountBySymbol(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to count ohlcv rows by symbol")
	}
	technicalsCounts, err := b.analytics.CountTechnicalsBySymbol(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to count technicals rows by symbol")
	}

	var skippedInstruments []SkippedInstrument
	var skippedFeatures []SkippedFeature
	for _, sym := range universe {
		n := counts[sym]
		if n <= 0 {
			skippedInstruments = append(skippedInstruments, SkippedInstrument{Symbol: sym, FallbackReason: "missing_ohlcv_rows"})
			continue
		}
		if technicalsCounts[sym] <= 0 {
			skippedFeatures = append(skippedFeatures, SkippedFeature{
				Symbol: sym, Feature: "sma_short,sma_long", FallbackReason: "missing_technical_rows",
			})
		}
	}

	fallbackReason := ""
	switch {
	case len(skippedInstruments) > 0:
		fallbackReason = "critical_missing_ohlcv_rows"
	case len(skippedFeatures) > 0:
		fallbackReason = "technical_features_missing"
	}

	if strictMode && len(skippedInstruments) > 0 {
		return nil, errkind.New(errkind.Invalid,
			"strict completeness check failed: missing critical PIT dependencies (OHLCV rows)").
			WithRemediation("import required OHLCV data for all requested symbols/date range")
	}

	return &CompletenessReport{
		Universe: universe, StartDate: startDate, EndDate: endDate, StrictMode: strictMode,
		TotalSymbols: len(universe), CoveredSymbols: len(universe) - len(skippedInstruments),
		SkippedInstruments: skippedInstruments, SkippedFeatures: skippedFeatures, FallbackReason: fallbackReason,
	}, nil
}
