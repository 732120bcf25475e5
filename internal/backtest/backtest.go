// Package backtest implements the code-strategy backtest engine (C7):
// signal -> position -> equity simulation over a frozen world-state
// manifest, metrics, and artifact emission (equity/drawdown SVG, trade
// blotter and signal-context CSV).
package backtest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/codestrategy"
	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/sandbox"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/worldstate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine runs code-strategy backtests.
type Engine struct {
	analytics    *analytics.Store
	store        *store.Store
	worldState   *worldstate.Builder
	artifactsDir string
	log          zerolog.Logger
}

// New creates a backtest Engine. artifactsDir is the process-wide artifacts
// root; this engine writes under <artifactsDir>/code-backtests.
func New(analyticsStore *analytics.Store, stateStore *store.Store, worldState *worldstate.Builder, artifactsDir string, log zerolog.Logger) *Engine {
	return &Engine{
		analytics: analyticsStore, store: stateStore, worldState: worldState,
		artifactsDir: artifactsDir, log: log.With().Str("component", "backtest").Logger(),
	}
}

// Request is the input to Engine.Run.
type Request struct {
	StrategyID     string
	StrategyName   string
	SourceCode     string
	Universe       []string
	StartDate      string
	EndDate        string
	InitialCapital float64
	TimeoutSeconds float64
	MemoryMB       int64
	CPUSeconds     int64
	TuningParams   map[string]interface{}
}

// Artifacts names the files emitted for one run.
type Artifacts struct {
	EquityCurvePath   string `json:"equity_curve_path"`
	DrawdownPath      string `json:"drawdown_path"`
	TradeBlotterPath  string `json:"trade_blotter_path"`
	SignalContextPath string `json:"signal_context_path"`
}

// Result is the outcome of a code-strategy backtest run.
type Result struct {
	RunID             string    `json:"run_id"`
	StrategyName      string    `json:"strategy_name"`
	StrategyVersionID string    `json:"strategy_version_id"`
	WorldManifestID   string    `json:"world_manifest_id"`
	Metrics           Metrics   `json:"metrics"`
	Artifacts         Artifacts `json:"artifacts"`
	SandboxRunID      string    `json:"sandbox_run_id"`
	SignalsCount      int       `json:"signals_count"`
}

type pricePoint struct {
	day   string
	close float64
}

// Run executes one code-strategy backtest: validate+version the strategy,
// load the universe's OHLCV frame, invoke the sandbox, simulate equity from
// the returned buy signals, emit artifacts, compute metrics, and persist
// the run.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "universe must not be empty")
	}
	if req.InitialCapital <= 0 {
		return nil, errkind.New(errkind.Invalid, "initial_capital must be positive")
	}

	validation, err := codestrategy.Validate(req.SourceCode)
	if err != nil {
		return nil, err
	}
	validationJSON, err := json.Marshal(validation)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal validation result")
	}

	strategyID := req.StrategyID
	if strategyID == "" {
		strategyID = uuid.NewString()
	}
	version, err := e.store.SaveStrategyVersion(strategyID, req.StrategyName, uuid.NewString(), req.SourceCode, string(validationJSON))
	if err != nil {
		return nil, err
	}

	rows, err := e.analytics.QueryUniverseRange(req.Universe, req.StartDate, req.EndDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to query ohlcv rows for backtest")
	}
	if len(rows) == 0 {
		return nil, errkind.New(errkind.Invalid, "no OHLCV rows found for requested universe/date range")
	}

	frame := make([]map[string]interface{}, 0, len(rows))
	bySymbol := make(map[string][]pricePoint)
	dateSet := make(map[string]bool)
	for _, r := range rows {
		day := dateKey(r.Timestamp)
		frame = append(frame, map[string]interface{}{"symbol": r.Symbol, "timestamp": day, "close": r.Close})
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], pricePoint{day: day, close: r.Close})
		dateSet[day] = true
	}

	context := map[string]interface{}{
		"start_date": req.StartDate, "end_date": req.EndDate, "initial_capital": req.InitialCapital,
	}
	if req.TuningParams != nil {
		context["tuning_params"] = req.TuningParams
	}

	sandboxResult, err := sandbox.Run(ctx, sandbox.Input{
		SourceCode: req.SourceCode,
		DataBundle: map[string]interface{}{"universe": req.Universe},
		Frame:      frame,
		Context:    context,
	}, sandbox.Limits{TimeoutSeconds: req.TimeoutSeconds, MemoryMB: req.MemoryMB, CPUSeconds: req.CPUSeconds}, e.sandboxArtifactRoot())
	if err != nil {
		return nil, err
	}

	signals, _ := sandboxResult.Outputs.Signals.([]interface{})
	riskPayload, _ := sandboxResult.Outputs.Risk.(map[string]interface{})

	activeSymbols := activeBuySymbols(signals, bySymbol)
	orderedDates := sortedKeys(dateSet)
	if len(orderedDates) < 2 {
		return nil, errkind.New(errkind.Invalid, "need at least two dates for code strategy backtest")
	}

	equitySeries, tradeCount := simulateEquity(req.InitialCapital, activeSymbols, bySymbol, orderedDates)

	metrics, err := computeMetrics(equitySeries, tradeCount)
	if err != nil {
		return nil, err
	}
	drawdowns := drawdownSeries(equitySeries)

	runDir := filepath.Join(e.artifactsDir, "code-backtests")
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to create backtest artifacts directory")
	}
	runID := uuid.NewString()
	tempID := time.Now().UTC().Format("20060102150405.000000")
	equityPath := filepath.Join(runDir, fmt.Sprintf("equity-%s.svg", tempID))
	drawdownPath := filepath.Join(runDir, fmt.Sprintf("drawdown-%s.svg", tempID))
	tradePath := filepath.Join(runDir, fmt.Sprintf("trades-%s.csv", tempID))
	signalPath := filepath.Join(runDir, fmt.Sprintf("signals-%s.csv", tempID))

	if err := WriteLineChartSVG(equityPath, fmt.Sprintf("Code Strategy Equity - %s", req.StrategyName), orderedDates, equitySeries); err != nil {
		return nil, err
	}
	if err := WriteLineChartSVG(drawdownPath, fmt.Sprintf("Code Strategy Drawdown - %s", req.StrategyName), orderedDates, drawdowns); err != nil {
		return nil, err
	}
	if err := writeSignalContextCSV(signalPath, bySymbol, signals); err != nil {
		return nil, err
	}
	if err := writeTradeBlotterCSV(tradePath, activeSymbols, bySymbol, req.InitialCapital); err != nil {
		return nil, err
	}

	manifest, err := e.worldState.BuildManifest(req.Universe, req.StartDate, req.EndDate, "none")
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"mode": "code_strategy", "strategy_name": req.StrategyName, "universe": req.Universe,
		"start_date": req.StartDate, "end_date": req.EndDate, "initial_capital": req.InitialCapital,
		"signals": signals, "risk": riskPayload, "sandbox_run_id": sandboxResult.RunID,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal backtest payload")
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal backtest metrics")
	}
	artifacts := Artifacts{
		EquityCurvePath: equityPath, DrawdownPath: drawdownPath,
		TradeBlotterPath: tradePath, SignalContextPath: signalPath,
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal backtest artifacts")
	}

	if err := e.store.SaveBacktestRun(&store.BacktestRun{
		RunID: runID, StrategyVersionID: version.ID, WorldManifestID: manifest.ManifestID,
		MetricsJSON: string(metricsJSON), ArtifactPathsJSON: string(artifactsJSON), PayloadJSON: string(payloadJSON),
	}); err != nil {
		return nil, err
	}

	if err := e.store.AppendAuditEvent("", "code.backtest.run", map[string]interface{}{
		"run_id": runID, "strategy_name": req.StrategyName, "strategy_version_id": version.ID,
		"signals_count": len(signals), "sandbox_run_id": sandboxResult.RunID,
	}); err != nil {
		e.log.Warn().Err(err).Msg("failed to append backtest audit event")
	}

	return &Result{
		RunID: runID, StrategyName: req.StrategyName, StrategyVersionID: version.ID,
		WorldManifestID: manifest.ManifestID, Metrics: *metrics, Artifacts: artifacts,
		SandboxRunID: sandboxResult.RunID, SignalsCount: len(signals),
	}, nil
}

func (e *Engine) sandboxArtifactRoot() string {
	return filepath.Join(e.artifactsDir, "code-runs")
}

func dateKey(timestamp string) string {
	if len(timestamp) >= 10 {
		return timestamp[:10]
	}
	return timestamp
}

func activeBuySymbols(signals []interface{}, bySymbol map[string][]pricePoint) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range signals {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		symbol, _ := item["symbol"].(string)
		signalType, _ := item["signal"].(string)
		if symbol == "" || signalType != "buy" {
			continue
		}
		if _, known := bySymbol[symbol]; !known || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func simulateEquity(initialCapital float64, activeSymbols []string, bySymbol map[string][]pricePoint, orderedDates []string) ([]float64, int) {
	if len(activeSymbols) == 0 {
		equity := make([]float64, len(orderedDates))
		for i := range equity {
			equity[i] = initialCapital
		}
		return equity, 0
	}

	allocation := initialCapital / float64(len(activeSymbols))
	tradeCount := len(activeSymbols) * 2

	pointsBySymbolDay := make(map[string]map[string]float64, len(activeSymbols))
	firstClose := make(map[string]float64, len(activeSymbols))
	for _, symbol := range activeSymbols {
		points := bySymbol[symbol]
		byDay := make(map[string]float64, len(points))
		for _, p := range points {
			byDay[p.day] = p.close
		}
		pointsBySymbolDay[symbol] = byDay
		firstClose[symbol] = points[0].close
	}

	lastClose := make(map[string]float64, len(activeSymbols))
	equity := make([]float64, 0, len(orderedDates))
	for _, day := range orderedDates {
		total := 0.0
		for _, symbol := range activeSymbols {
			if close, ok := pointsBySymbolDay[symbol][day]; ok {
				lastClose[symbol] = close
			}
			close, known := lastClose[symbol]
			if !known {
				close = firstClose[symbol]
			}
			total += allocation * (close / firstClose[symbol])
		}
		equity = append(equity, total)
	}
	return equity, tradeCount
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeTradeBlotterCSV(path string, activeSymbols []string, bySymbol map[string][]pricePoint, initialCapital float64) error {
	f, err := os.Create(path)
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "failed to create trade blotter csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"symbol", "entry_ts", "exit_ts", "entry_price", "exit_price", "pnl", "entry_reason", "exit_reason"}); err != nil {
		return errkind.Wrap(errkind.Internal, err, "failed to write trade blotter header")
	}

	notional := initialCapital / float64(maxInt(1, len(activeSymbols)))
	for _, symbol := range activeSymbols {
		points := bySymbol[symbol]
		entry, exit := points[0], points[len(points)-1]
		qty := 0.0
		if entry.close > 0 {
			qty = notional / entry.close
		}
		pnl := qty * (exit.close - entry.close)
		row := []string{
			symbol, entry.day, exit.day,
			formatFloat(entry.close), formatFloat(exit.close), formatFloat(pnl),
			"signal_buy", "end_of_window",
		}
		if err := w.Write(row); err != nil {
			return errkind.Wrap(errkind.Internal, err, "failed to write trade blotter row")
		}
	}
	return nil
}

func writeSignalContextCSV(path string, bySymbol map[string][]pricePoint, signals []interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "failed to create signal context csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"symbol", "timestamp", "close", "signal", "strength", "reason_code"}); err != nil {
		return errkind.Wrap(errkind.Internal, err, "failed to write signal context header")
	}

	bySymbolSignal := make(map[string]map[string]interface{}, len(signals))
	for _, raw := range signals {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		symbol, _ := item["symbol"].(string)
		if symbol != "" {
			bySymbolSignal[symbol] = item
		}
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		item := bySymbolSignal[symbol]
		signalType := "watch"
		reasonCode := fmt.Sprintf("signal_%s", signalType)
		strength := ""
		if item != nil {
			if v, ok := item["signal"].(string); ok && v != "" {
				signalType = v
			}
			if v, ok := item["reason_code"].(string); ok && v != "" {
				reasonCode = v
			} else {
				reasonCode = fmt.Sprintf("signal_%s", signalType)
			}
			if v, ok := item["strength"].(float64); ok {
				strength = formatFloat(v)
			}
		}
		for _, p := range bySymbol[symbol] {
			row := []string{symbol, p.day, formatFloat(p.close), signalType, strength, reasonCode}
			if err := w.Write(row); err != nil {
				return errkind.Wrap(errkind.Internal, err, "failed to write signal context row")
			}
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.6f", f)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
