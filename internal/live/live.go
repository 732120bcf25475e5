// Package live implements the live snapshot and boundary selector (C9):
// it replays a code strategy's latest version against a recent window of
// closes through the sandbox, in live mode, and ranks symbols by how close
// their signal sits to the buy/sell boundary.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/sandbox"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

const defaultLookbackDays = 180

// Engine builds live snapshots for code strategies.
type Engine struct {
	analytics    *analytics.Store
	store        *store.Store
	artifactsDir string
	log          zerolog.Logger
}

// New creates a live Engine. artifactsDir is the process-wide artifacts
// root; boundary charts are written under <artifactsDir>/boundary.
func New(analyticsStore *analytics.Store, stateStore *store.Store, artifactsDir string, log zerolog.Logger) *Engine {
	return &Engine{
		analytics: analyticsStore, store: stateStore, artifactsDir: artifactsDir,
		log: log.With().Str("component", "live").Logger(),
	}
}

// Request is the input to BuildSnapshot.
type Request struct {
	StrategyID     string
	LookbackDays   int
	TimeoutSeconds float64
	MemoryMB       int64
	CPUSeconds     int64
}

// Row is one symbol's live boundary-distance reading.
type Row struct {
	Symbol                string  `json:"symbol"`
	Date                  string  `json:"date"`
	Close                 float64 `json:"close"`
	Action                string  `json:"action"`
	ReasonCode            string  `json:"reason_code"`
	Strength              float64 `json:"strength"`
	DistanceToBoundary    float64 `json:"distance_to_boundary"`
	AbsDistanceToBoundary float64 `json:"abs_distance_to_boundary"`
	Score                 float64 `json:"score"`
}

// Snapshot is the outcome of one BuildSnapshot call.
type Snapshot struct {
	StrategyVersionID string `json:"strategy_version_id"`
	SandboxRunID      string `json:"sandbox_run_id"`
	Rows              []Row  `json:"rows"`
}

type closePoint struct {
	day   string
	close float64
}

// BuildSnapshot resolves the strategy's latest version and most recent
// backtest to recover (universe, end_date, source_code), loads the last
// lookback_days of closes for that universe, invokes the sandbox in live
// mode, and emits one Row per symbol the strategy returned a signal for.
func (e *Engine) BuildSnapshot(ctx context.Context, req Request) (*Snapshot, error) {
	if req.StrategyID == "" {
		return nil, errkind.New(errkind.Invalid, "strategy_id is required")
	}
	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}

	version, err := e.store.GetLatestStrategyVersion(req.StrategyID)
	if err != nil {
		return nil, err
	}

	runs, err := e.store.ListBacktestRuns(version.ID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errkind.Newf(errkind.NotFound, "no backtest run found for strategy_version_id=%s", version.ID)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(runs[0].PayloadJSON), &payload); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to parse backtest payload")
	}

	universe, ok := stringSlice(payload["universe"])
	if !ok || len(universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "latest backtest payload is missing a universe")
	}
	endDate, _ := payload["end_date"].(string)
	if endDate == "" {
		return nil, errkind.New(errkind.Invalid, "latest backtest payload is missing end_date")
	}
	strategyName, _ := payload["strategy_name"].(string)

	startDate, err := shiftDate(endDate, -lookback)
	if err != nil {
		return nil, err
	}

	rows, err := e.analytics.QueryUniverseRange(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to query ohlcv rows for live snapshot")
	}
	if len(rows) == 0 {
		return nil, errkind.New(errkind.Invalid, "no OHLCV rows found for live snapshot window")
	}

	frame := make([]map[string]interface{}, 0, len(rows))
	latestBySymbol := make(map[string]closePoint, len(universe))
	for _, r := range rows {
		day := dateKey(r.Timestamp)
		frame = append(frame, map[string]interface{}{"symbol": r.Symbol, "timestamp": day, "close": r.Close})
		latestBySymbol[r.Symbol] = closePoint{day: day, close: r.Close}
	}

	sandboxResult, err := sandbox.Run(ctx, sandbox.Input{
		SourceCode: version.SourceCode,
		DataBundle: map[string]interface{}{"universe": universe},
		Frame:      frame,
		Context:    map[string]interface{}{"start_date": startDate, "end_date": endDate, "mode": "live"},
	}, sandbox.Limits{TimeoutSeconds: req.TimeoutSeconds, MemoryMB: req.MemoryMB, CPUSeconds: req.CPUSeconds}, e.sandboxArtifactRoot())
	if err != nil {
		return nil, err
	}

	signals, _ := sandboxResult.Outputs.Signals.([]interface{})
	snapshotRows := make([]Row, 0, len(signals))
	for _, raw := range signals {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		symbol, _ := item["symbol"].(string)
		if symbol == "" {
			continue
		}
		point, known := latestBySymbol[symbol]
		if !known {
			continue
		}

		action, _ := item["signal"].(string)
		if action == "" {
			action = "watch"
		}
		reasonCode, _ := item["reason_code"].(string)
		if reasonCode == "" {
			reasonCode = fmt.Sprintf("signal_%s", action)
		}
		strength, _ := toFloat64(item["strength"])
		distance := 0.5 - strength
		absDistance := math.Abs(distance)

		snapshotRows = append(snapshotRows, Row{
			Symbol: symbol, Date: point.day, Close: point.close, Action: action, ReasonCode: reasonCode,
			Strength: strength, DistanceToBoundary: distance, AbsDistanceToBoundary: absDistance, Score: absDistance,
		})
	}
	sort.Slice(snapshotRows, func(i, j int) bool { return snapshotRows[i].Symbol < snapshotRows[j].Symbol })

	statePayload, err := json.Marshal(map[string]interface{}{
		"rows": snapshotRows, "sandbox_run_id": sandboxResult.RunID, "universe": universe, "end_date": endDate,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal live state payload")
	}
	if err := e.store.UpsertLiveState(&store.LiveState{
		StrategyVersionID: version.ID, StrategyName: strategyName, Status: "active", PayloadJSON: string(statePayload),
	}); err != nil {
		return nil, err
	}

	for _, row := range snapshotRows {
		insightJSON, err := json.Marshal(row)
		if err != nil {
			continue
		}
		if err := e.store.AppendLiveInsight(&store.LiveInsight{
			StrategyVersionID: version.ID, Action: row.Action, Symbol: row.Symbol,
			ReasonCode: row.ReasonCode, Score: row.Score, PayloadJSON: string(insightJSON),
		}); err != nil {
			e.log.Warn().Err(err).Str("symbol", row.Symbol).Msg("failed to append live insight")
		}
	}

	return &Snapshot{StrategyVersionID: version.ID, SandboxRunID: sandboxResult.RunID, Rows: snapshotRows}, nil
}

func (e *Engine) sandboxArtifactRoot() string {
	return e.artifactsDir + "/live-runs"
}

func dateKey(timestamp string) string {
	if len(timestamp) >= 10 {
		return timestamp[:10]
	}
	return timestamp
}

func shiftDate(date string, deltaDays int) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", errkind.Wrap(errkind.Invalid, err, "end_date must be YYYY-MM-DD")
	}
	return t.AddDate(0, 0, deltaDays).Format("2006-01-02"), nil
}

func stringSlice(raw interface{}) ([]string, bool) {
	values, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
