// Package events implements the in-process side of the event bus (C10):
// typed event payloads and a broadcast Manager that lets HTTP handlers wait
// on "something new happened" instead of tight-polling the job_events table.
// The table itself (internal/store) remains the durable, monotonically
// numbered source of truth for the SSE cursor contract; Manager is purely an
// optimization over that, consistent with "the implementation may back it
// with a periodic poll or a DB-level notify mechanism" (design notes).
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType enumerates the kinds of events this system emits.
type EventType string

const (
	JobQueued    EventType = "job.queued"
	JobRunning   EventType = "job.running"
	JobCompleted EventType = "job.completed"
	JobFailed    EventType = "job.failed"

	WorldStateBuilt       EventType = "world_state.built"
	CodeStrategyValidated EventType = "code_strategy.validated"
	BacktestCompleted     EventType = "backtest.completed"
	TuningCandidateScored EventType = "tuning.candidate_scored"
	TuningRunCompleted    EventType = "tuning.run_completed"
	LiveSnapshotRefreshed EventType = "live.snapshot_refreshed"
	ArtifactArchived      EventType = "artifact.archived"
)

// Data is implemented by every typed event payload.
type Data interface {
	EventType() EventType
}

// ProgressInfo describes job progress at the moment of the event.
type ProgressInfo struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Phase   string `json:"phase,omitempty"`
}

// JobStatusData is emitted on every job lifecycle transition.
type JobStatusData struct {
	JobID    string        `json:"job_id"`
	JobType  string        `json:"job_type"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Progress *ProgressInfo `json:"progress,omitempty"`
}

func (JobStatusData) EventType() EventType { return JobRunning }

// WorldStateBuiltData is emitted after a manifest is persisted.
type WorldStateBuiltData struct {
	ManifestID string `json:"manifest_id"`
	RowCount   int    `json:"row_count"`
}

func (WorldStateBuiltData) EventType() EventType { return WorldStateBuilt }

// BacktestCompletedData is emitted after a backtest run is persisted.
type BacktestCompletedData struct {
	RunID       string  `json:"run_id"`
	FinalEquity float64 `json:"final_equity"`
	Sharpe      float64 `json:"sharpe"`
	TradeCount  int     `json:"trade_count"`
}

func (BacktestCompletedData) EventType() EventType { return BacktestCompleted }

// TuningCandidateScoredData is emitted after each candidate evaluation.
type TuningCandidateScoredData struct {
	TuningRunID string  `json:"tuning_run_id"`
	Layer       int     `json:"layer"`
	Score       float64 `json:"score"`
}

func (TuningCandidateScoredData) EventType() EventType { return TuningCandidateScored }

// LiveSnapshotRefreshedData is emitted after a live snapshot rebuild.
type LiveSnapshotRefreshedData struct {
	StrategyVersionID string `json:"strategy_version_id"`
	SymbolCount       int    `json:"symbol_count"`
}

func (LiveSnapshotRefreshedData) EventType() EventType { return LiveSnapshotRefreshed }

// Envelope wraps a Data payload with bus-assigned metadata.
type Envelope struct {
	Seq       int64     `json:"seq"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager fans out Envelopes to subscribers. It never blocks a publisher:
// a slow or absent subscriber simply misses events broadcast while it
// wasn't listening (consumers rely on the durable cursor for replay).
type Manager struct {
	mu   sync.Mutex
	subs map[chan Envelope]struct{}
	seq  int64
}

// NewManager creates an event manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[chan Envelope]struct{})}
}

// Subscribe registers a new listener. Call the returned cancel func to
// unregister and close the channel.
func (m *Manager) Subscribe() (ch chan Envelope, cancel func()) {
	ch = make(chan Envelope, 32)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel = func() {
		m.mu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// EmitTyped assigns a monotonically increasing sequence number and
// broadcasts the envelope to all current subscribers (non-blocking).
func (m *Manager) EmitTyped(t EventType, source string, data Data) Envelope {
	env := Envelope{
		Seq:       atomic.AddInt64(&m.seq, 1),
		Type:      t,
		Source:    source,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- env:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return env
}
