package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/google/uuid"
)

// TuningTrial is one append-only candidate evaluation row.
type TuningTrial struct {
	ID            string
	TuningRunID   string
	BacktestRunID string
	ParamsJSON    string
	MetricsJSON   string
	Score         float64
	CreatedAt     time.Time
}

// TuningLayerDecision is one append-only per-layer decision row.
type TuningLayerDecision struct {
	ID          string
	TuningRunID string
	LayerName   string
	Enabled     bool
	Reason      string
	PayloadJSON string
	CreatedAt   time.Time
}

// SaveTuningRun persists the aggregate tuning payload and, within the same
// transaction, the decomposed trial rows (payload.evaluated_candidates) and
// layer-decision rows (payload.tuning_plan.layers). A candidate missing
// run_id, carrying a non-numeric score, or a layer missing layer/reason
// fails the whole transaction (nothing partial is left behind).
func (s *Store) SaveTuningRun(tuningRunID, strategyName string, payload map[string]interface{}) error {
	if tuningRunID == "" || strategyName == "" {
		return errkind.New(errkind.Invalid, "tuning_run_id and strategy_name are required")
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal tuning payload: %w", err)
	}

	trials, err := parseTuningTrials(tuningRunID, payload)
	if err != nil {
		return err
	}
	decisions, err := parseTuningLayerDecisions(tuningRunID, payload)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	return withTx(s.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO tuning_runs (tuning_run_id, strategy_name, payload, created_at) VALUES (?, ?, ?, ?)`,
			tuningRunID, strategyName, string(payloadJSON), now); err != nil {
			return fmt.Errorf("failed to insert tuning run: %w", err)
		}

		for _, t := range trials {
			if _, err := tx.Exec(`INSERT INTO tuning_trials (id, tuning_run_id, backtest_run_id, params, metrics, score, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.TuningRunID, nullString(t.BacktestRunID), t.ParamsJSON, t.MetricsJSON, t.Score, now); err != nil {
				return fmt.Errorf("failed to insert tuning trial: %w", err)
			}
		}

		for _, d := range decisions {
			if _, err := tx.Exec(`INSERT INTO tuning_layer_decisions (id, tuning_run_id, layer_name, enabled, reason, payload, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				d.ID, d.TuningRunID, d.LayerName, boolToInt(d.Enabled), d.Reason, d.PayloadJSON, now); err != nil {
				return fmt.Errorf("failed to insert tuning layer decision: %w", err)
			}
		}
		return nil
	})
}

func parseTuningTrials(tuningRunID string, payload map[string]interface{}) ([]*TuningTrial, error) {
	raw, ok := payload["evaluated_candidates"]
	if !ok {
		return nil, nil
	}
	candidates, ok := raw.([]interface{})
	if !ok {
		return nil, errkind.New(errkind.Invalid, "evaluated_candidates must be a list")
	}

	var out []*TuningTrial
	for i, c := range candidates {
		cm, ok := c.(map[string]interface{})
		if !ok {
			return nil, errkind.Newf(errkind.Invalid, "evaluated_candidates[%d] must be an object", i)
		}
		runID, _ := cm["run_id"].(string)
		if runID == "" {
			return nil, errkind.Newf(errkind.Invalid, "evaluated_candidates[%d] missing run_id", i)
		}
		scoreVal, ok := cm["score"].(float64)
		if !ok {
			return nil, errkind.Newf(errkind.Invalid, "evaluated_candidates[%d] score must be numeric", i)
		}
		paramsJSON, err := json.Marshal(cm["params"])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal candidate params: %w", err)
		}
		metricsJSON, err := json.Marshal(cm["metrics"])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal candidate metrics: %w", err)
		}
		out = append(out, &TuningTrial{
			ID:            uuid.NewString(),
			TuningRunID:   tuningRunID,
			BacktestRunID: runID,
			ParamsJSON:    string(paramsJSON),
			MetricsJSON:   string(metricsJSON),
			Score:         scoreVal,
		})
	}
	return out, nil
}

func parseTuningLayerDecisions(tuningRunID string, payload map[string]interface{}) ([]*TuningLayerDecision, error) {
	plan, ok := payload["tuning_plan"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rawLayers, ok := plan["layers"]
	if !ok {
		return nil, nil
	}
	layers, ok := rawLayers.([]interface{})
	if !ok {
		return nil, errkind.New(errkind.Invalid, "tuning_plan.layers must be a list")
	}

	var out []*TuningLayerDecision
	for i, l := range layers {
		lm, ok := l.(map[string]interface{})
		if !ok {
			return nil, errkind.Newf(errkind.Invalid, "tuning_plan.layers[%d] must be an object", i)
		}
		layerName, _ := lm["layer"].(string)
		reason, _ := lm["reason"].(string)
		if layerName == "" || reason == "" {
			return nil, errkind.Newf(errkind.Invalid, "tuning_plan.layers[%d] missing layer or reason", i)
		}
		enabled, _ := lm["enabled"].(bool)
		payloadJSON, err := json.Marshal(lm)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal layer decision payload: %w", err)
		}
		out = append(out, &TuningLayerDecision{
			ID:          uuid.NewString(),
			TuningRunID: tuningRunID,
			LayerName:   layerName,
			Enabled:     enabled,
			Reason:      reason,
			PayloadJSON: string(payloadJSON),
		})
	}
	return out, nil
}

// UpdateTuningRun deep-merges updates into the run's stored payload within a
// transaction. Used for async progress reporting.
func (s *Store) UpdateTuningRun(tuningRunID string, updates map[string]interface{}) error {
	return withTx(s.db.Conn(), func(tx *sql.Tx) error {
		var existingJSON string
		if err := tx.QueryRow(`SELECT payload FROM tuning_runs WHERE tuning_run_id = ?`, tuningRunID).Scan(&existingJSON); err != nil {
			if err == sql.ErrNoRows {
				return errkind.Newf(errkind.NotFound, "tuning run not found: %s", tuningRunID)
			}
			return fmt.Errorf("failed to read tuning run payload: %w", err)
		}

		var existing map[string]interface{}
		if err := json.Unmarshal([]byte(existingJSON), &existing); err != nil {
			return fmt.Errorf("failed to unmarshal tuning run payload: %w", err)
		}

		merged := deepMerge(existing, updates)
		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal merged tuning run payload: %w", err)
		}

		if _, err := tx.Exec(`UPDATE tuning_runs SET payload = ? WHERE tuning_run_id = ?`, string(mergedJSON), tuningRunID); err != nil {
			return fmt.Errorf("failed to update tuning run: %w", err)
		}
		return nil
	})
}

// deepMerge recursively merges src into dst, overwriting scalar/array
// values and merging nested objects key-by-key.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if existing, ok := out[k]; ok {
			existingMap, existingIsMap := existing.(map[string]interface{})
			srcMap, srcIsMap := v.(map[string]interface{})
			if existingIsMap && srcIsMap {
				out[k] = deepMerge(existingMap, srcMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// AppendTuningTrial appends a single trial row; the run must already exist.
func (s *Store) AppendTuningTrial(t *TuningTrial) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Conn().Exec(`INSERT INTO tuning_trials (id, tuning_run_id, backtest_run_id, params, metrics, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TuningRunID, nullString(t.BacktestRunID), t.ParamsJSON, t.MetricsJSON, t.Score, t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append tuning trial: %w", err)
	}
	return nil
}

// AppendTuningLayerDecision appends a single layer-decision row.
func (s *Store) AppendTuningLayerDecision(d *TuningLayerDecision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Conn().Exec(`INSERT INTO tuning_layer_decisions (id, tuning_run_id, layer_name, enabled, reason, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TuningRunID, d.LayerName, boolToInt(d.Enabled), d.Reason, d.PayloadJSON, d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append tuning layer decision: %w", err)
	}
	return nil
}

// ListTuningTrials returns all trials for a run, oldest first.
func (s *Store) ListTuningTrials(tuningRunID string) ([]*TuningTrial, error) {
	rows, err := s.db.Conn().Query(`SELECT id, tuning_run_id, backtest_run_id, params, metrics, score, created_at
		FROM tuning_trials WHERE tuning_run_id = ? ORDER BY created_at ASC`, tuningRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tuning trials: %w", err)
	}
	defer rows.Close()

	var out []*TuningTrial
	for rows.Next() {
		var t TuningTrial
		var backtestRunID sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.TuningRunID, &backtestRunID, &t.ParamsJSON, &t.MetricsJSON, &t.Score, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tuning trial: %w", err)
		}
		t.BacktestRunID = stringOrEmpty(backtestRunID)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ListTuningLayerDecisions returns all layer decisions for a run, oldest first.
func (s *Store) ListTuningLayerDecisions(tuningRunID string) ([]*TuningLayerDecision, error) {
	rows, err := s.db.Conn().Query(`SELECT id, tuning_run_id, layer_name, enabled, reason, payload, created_at
		FROM tuning_layer_decisions WHERE tuning_run_id = ? ORDER BY created_at ASC`, tuningRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tuning layer decisions: %w", err)
	}
	defer rows.Close()

	var out []*TuningLayerDecision
	for rows.Next() {
		var d TuningLayerDecision
		var enabled int
		var createdAt string
		if err := rows.Scan(&d.ID, &d.TuningRunID, &d.LayerName, &enabled, &d.Reason, &d.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tuning layer decision: %w", err)
		}
		d.Enabled = enabled != 0
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
