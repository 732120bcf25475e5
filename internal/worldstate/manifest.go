package worldstate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/store"
	"github.com/google/uuid"
)

// Manifest is the domain-level view of a built world state; Universe is a
// decoded slice rather than the JSON string the store persists.
type Manifest struct {
	ManifestID               string
	Universe                 []string
	StartDate                string
	EndDate                  string
	AdjustmentPolicy         string
	DataHash                 string
	RowCount                 int
	FundamentalsRowCount     int
	CorporateActionsRowCount int
	RatingsRowCount          int
	CreatedAt                string
}

// BuildManifest freezes a (universe, date range, adjustment policy)
// selection into an immutable manifest. Every symbol in universe must have
// at least one OHLCV row in range, or this fails with the missing list.
func (b *Builder) BuildManifest(universe []string, startDate, endDate, adjustmentPolicy string) (*Manifest, error) {
	if len(universe) == 0 {
		return nil, errkind.New(errkind.Invalid, "universe must not be empty")
	}
	policy := strings.ToLower(strings.TrimSpace(adjustmentPolicy))
	if policy == "" {
		policy = "none"
	}
	if !validAdjustmentPolicies[policy] {
		return nil, errkind.Newf(errkind.Invalid,
			"unsupported adjustment_policy=%s; expected one of: none, split_adjusted, total_return", adjustmentPolicy)
	}

	rows, err := b.analytics.QueryUniverseRange(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to query ohlcv rows for manifest")
	}
	if len(rows) == 0 {
		return nil, errkind.New(errkind.Invalid, "no market rows available for requested universe/date range")
	}

	asOf := endDate + "T23:59:59"
	fundamentalsCount, err := b.analytics.CountFundamentalsAsOf(universe, asOf)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to count fundamentals for manifest")
	}
	actionsCount, err := b.analytics.CountCorporateActionsInRange(universe, startDate, endDate)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to count corporate actions for manifest")
	}
	ratingsCount, err := b.analytics.CountRatingsAsOf(universe, asOf)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to count ratings for manifest")
	}

	bySymbol := make(map[string]int, len(universe))
	for _, sym := range universe {
		bySymbol[sym] = 0
	}
	h := sha256.New()
	for _, r := range rows {
		bySymbol[r.Symbol]++
		serialized := strings.Join([]string{
			r.Symbol, r.Timestamp, r.PublishedAt,
			formatFloat(r.Open), formatFloat(r.High), formatFloat(r.Low), formatFloat(r.Close), formatFloat(r.Volume),
			r.DatasetHash,
		}, "|")
		h.Write([]byte(serialized))
	}
	h.Write([]byte(fmt.Sprintf("adjustment_policy=%s", policy)))
	h.Write([]byte(fmt.Sprintf("fundamentals_count=%d", fundamentalsCount)))
	h.Write([]byte(fmt.Sprintf("actions_count=%d", actionsCount)))
	h.Write([]byte(fmt.Sprintf("ratings_count=%d", ratingsCount)))

	var missing []string
	for _, sym := range universe {
		if bySymbol[sym] == 0 {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		return nil, errkind.Newf(errkind.Invalid, "critical PIT data missing for symbols: %v", missing).
			WithRemediation("import OHLCV data for all requested symbols before building a world-state manifest")
	}

	universeJSON, err := json.Marshal(universe)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to marshal universe")
	}

	m := &Manifest{
		ManifestID: uuid.NewString(), Universe: universe, StartDate: startDate, EndDate: endDate,
		AdjustmentPolicy: policy, DataHash: hex.EncodeToString(h.Sum(nil)), RowCount: len(rows),
		FundamentalsRowCount: fundamentalsCount, CorporateActionsRowCount: actionsCount, RatingsRowCount: ratingsCount,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := b.store.SaveWorldStateManifest(store.WorldStateManifest{
		ManifestID: m.ManifestID, Universe: string(universeJSON), StartDate: m.StartDate, EndDate: m.EndDate,
		AdjustmentPolicy: m.AdjustmentPolicy, DataHash: m.DataHash, RowCount: m.RowCount,
		FundamentalsRowCount: m.FundamentalsRowCount, CorporateActionsRowCount: m.CorporateActionsRowCount,
		RatingsRowCount: m.RatingsRowCount, CreatedAt: m.CreatedAt,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// GetManifest loads a previously built manifest by id.
func (b *Builder) GetManifest(manifestID string) (*Manifest, error) {
	row, err := b.store.GetWorldStateManifest(manifestID)
	if err != nil {
		return nil, err
	}
	var universe []string
	if err := json.Unmarshal([]byte(row.Universe), &universe); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to unmarshal manifest universe")
	}
	return &Manifest{
		ManifestID: row.ManifestID, Universe: universe, StartDate: row.StartDate, EndDate: row.EndDate,
		AdjustmentPolicy: row.AdjustmentPolicy, DataHash: row.DataHash, RowCount: row.RowCount,
		FundamentalsRowCount: row.FundamentalsRowCount, CorporateActionsRowCount: row.CorporateActionsRowCount,
		RatingsRowCount: row.RatingsRowCount, CreatedAt: row.CreatedAt,
	}, nil
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.10f", f), "0"), ".")
}
