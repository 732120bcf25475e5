package live

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aristath/sentinel/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boundaryStrategySource = `
function prepare(dataBundle, context) { return {}; }
function generate_signals(frame, state, context) {
  return [
    {symbol: "AAA", signal: "buy", strength: 0.9, reason_code: "trend_above"},
    {symbol: "BBB", signal: "sell", strength: 0.1, reason_code: "trend_below"}
  ];
}
function risk_rules(positions, context) { return {}; }
`

func seedLatestStrategyAndBacktest(t *testing.T, s *store.Store, strategyID, sourceCode string, universe []string, endDate string) string {
	t.Helper()
	version, err := s.SaveStrategyVersion(strategyID, "boundary-strategy", uuid.NewString(), sourceCode, "{}")
	require.NoError(t, err)

	payload := map[string]interface{}{
		"strategy_name": "boundary-strategy", "universe": universe, "end_date": endDate,
	}
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, s.SaveBacktestRun(&store.BacktestRun{
		RunID: uuid.NewString(), StrategyVersionID: version.ID,
		MetricsJSON: "{}", ArtifactPathsJSON: "{}", PayloadJSON: string(payloadJSON),
	}))
	return version.ID
}

func TestBuildSnapshotRanksSymbolsByStrengthDistance(t *testing.T) {
	e, analyticsStore, stateStore := newTestEngine(t)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 100)
	seedOHLCV(t, analyticsStore, "AAA", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 110)
	seedOHLCV(t, analyticsStore, "BBB", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", 50)
	seedOHLCV(t, analyticsStore, "BBB", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z", 45)

	versionID := seedLatestStrategyAndBacktest(t, stateStore, "strategy-1", boundaryStrategySource, []string{"AAA", "BBB"}, "2024-01-02")

	snapshot, err := e.BuildSnapshot(context.Background(), Request{
		StrategyID: "strategy-1", LookbackDays: 30, TimeoutSeconds: 5, MemoryMB: 128, CPUSeconds: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, versionID, snapshot.StrategyVersionID)
	require.Len(t, snapshot.Rows, 2)

	byName := map[string]Row{}
	for _, r := range snapshot.Rows {
		byName[r.Symbol] = r
	}
	assert.InDelta(t, 0.9, byName["AAA"].Strength, 1e-9)
	assert.InDelta(t, -0.4, byName["AAA"].DistanceToBoundary, 1e-9)
	assert.InDelta(t, 0.4, byName["AAA"].AbsDistanceToBoundary, 1e-9)
	assert.InDelta(t, 0.4, byName["BBB"].AbsDistanceToBoundary, 1e-9)

	state, err := stateStore.GetLiveState(versionID)
	require.NoError(t, err)
	assert.Equal(t, "active", state.Status)

	insights, err := stateStore.ListLiveInsights(versionID, 10)
	require.NoError(t, err)
	assert.Len(t, insights, 2)
}

func TestBuildSnapshotRejectsMissingStrategyID(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.BuildSnapshot(context.Background(), Request{})
	assert.Error(t, err)
}

func TestBoundaryCandidatesOrdersByAbsDistanceThenSymbol(t *testing.T) {
	rows := []Row{
		{Symbol: "ZZZ", AbsDistanceToBoundary: 0.1},
		{Symbol: "AAA", AbsDistanceToBoundary: 0.1},
		{Symbol: "BBB", AbsDistanceToBoundary: 0.05},
	}
	top, err := BoundaryCandidates(rows, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "BBB", top[0].Symbol)
	assert.Equal(t, "AAA", top[1].Symbol)
}

func TestBoundaryCandidatesRejectsNonPositiveTopK(t *testing.T) {
	_, err := BoundaryCandidates([]Row{{Symbol: "AAA"}}, 0)
	assert.Error(t, err)
}
