// Package session implements the append-only session/context ledger (C15):
// working-state snapshots and tool-call deltas are persisted per session,
// and a deep-diff walker reconstructs what changed between two snapshots'
// JSON trees, emitting one {path, change_type, before, after} entry per
// differing leaf, keys visited in sorted order.
package session

import (
	"encoding/json"
	"sort"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/store"
)

// ChangeType classifies one deep-diff entry.
type ChangeType string

const (
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
	Changed ChangeType = "changed"
)

// Change is one leaf-level difference between two JSON trees.
type Change struct {
	Path       string      `json:"path"`
	ChangeType ChangeType  `json:"change_type"`
	Before     interface{} `json:"before"`
	After      interface{} `json:"after"`
}

// Ledger wraps the durable session store with snapshot/delta/diff operations.
type Ledger struct {
	store *store.Store
}

// New creates a Ledger over an already-open relational store.
func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Snapshot persists a new working-state capture for a session.
func (l *Ledger) Snapshot(sessionID string, state map[string]interface{}) (*store.SessionStateSnapshot, error) {
	if sessionID == "" {
		return nil, errkind.New(errkind.Invalid, "session_id must not be empty")
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "failed to marshal session state")
	}
	return l.store.AppendSessionStateSnapshot(sessionID, string(stateJSON))
}

// RehydrateResult is the outcome of reconstructing a session's working
// context: its latest snapshot plus its most recent tool-call deltas.
type RehydrateResult struct {
	SessionID        string                      `json:"session_id"`
	Snapshot         *store.SessionStateSnapshot `json:"snapshot"`
	State            map[string]interface{}      `json:"state"`
	RecentToolDeltas []*store.ToolContextDelta   `json:"recent_tool_deltas"`
}

const recentDeltaLimit = 20

// Rehydrate returns the most recent snapshot and recent tool deltas for a
// session, for a caller resuming work after a restart.
func (l *Ledger) Rehydrate(sessionID string) (*RehydrateResult, error) {
	if sessionID == "" {
		return nil, errkind.New(errkind.Invalid, "session_id must not be empty")
	}
	snapshots, err := l.store.ListSessionStateSnapshots(sessionID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, errkind.Newf(errkind.NotFound, "no snapshots found for session %s", sessionID)
	}
	latest := snapshots[len(snapshots)-1]

	var state map[string]interface{}
	if err := json.Unmarshal([]byte(latest.StateJSON), &state); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to unmarshal session state")
	}

	deltas, err := l.store.ListToolContextDeltas(sessionID)
	if err != nil {
		return nil, err
	}
	if len(deltas) > recentDeltaLimit {
		deltas = deltas[len(deltas)-recentDeltaLimit:]
	}

	return &RehydrateResult{SessionID: sessionID, Snapshot: latest, State: state, RecentToolDeltas: deltas}, nil
}

// DiffResult is the outcome of comparing a session's two most recent
// snapshots.
type DiffResult struct {
	SessionID          string   `json:"session_id"`
	LatestSnapshotID   string   `json:"latest_snapshot_id"`
	PreviousSnapshotID string   `json:"previous_snapshot_id"`
	Changes            []Change `json:"changes"`
	ChangeCount        int      `json:"change_count"`
}

// Diff walks the two most recent snapshots for a session and returns the
// deep-diff between them (previous -> latest).
func (l *Ledger) Diff(sessionID string) (*DiffResult, error) {
	if sessionID == "" {
		return nil, errkind.New(errkind.Invalid, "session_id must not be empty")
	}
	snapshots, err := l.store.ListSessionStateSnapshots(sessionID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 2 {
		return nil, errkind.Newf(errkind.Invalid, "need at least 2 snapshots for session diff session_id=%s", sessionID)
	}

	latest := snapshots[len(snapshots)-1]
	previous := snapshots[len(snapshots)-2]

	var before, after interface{}
	if err := json.Unmarshal([]byte(previous.StateJSON), &before); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to unmarshal previous session state")
	}
	if err := json.Unmarshal([]byte(latest.StateJSON), &after); err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to unmarshal latest session state")
	}

	var changes []Change
	flattenDiff("", before, after, &changes)

	return &DiffResult{
		SessionID: sessionID, LatestSnapshotID: latest.ID, PreviousSnapshotID: previous.ID,
		Changes: changes, ChangeCount: len(changes),
	}, nil
}

// RecordToolDelta persists the diff a tool call produced against the
// session's working context, as one append-only row.
func (l *Ledger) RecordToolDelta(sessionID, toolName string, before, after map[string]interface{}) (*store.ToolContextDelta, error) {
	if sessionID == "" {
		return nil, errkind.New(errkind.Invalid, "session_id must not be empty")
	}
	if toolName == "" {
		return nil, errkind.New(errkind.Invalid, "tool_name must not be empty")
	}

	var changes []Change
	flattenDiff("", before, after, &changes)

	record := struct {
		ToolName string   `json:"tool_name"`
		Changes  []Change `json:"changes"`
	}{ToolName: toolName, Changes: changes}

	deltasJSON, err := json.Marshal(record)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "failed to marshal tool context delta")
	}
	return l.store.AppendToolContextDelta(sessionID, string(deltasJSON))
}

// flattenDiff walks before and after in lockstep, appending one Change per
// differing leaf. Map keys are visited in sorted order so output is
// deterministic; lists are compared wholesale (no element-level diffing),
// matching a flat-array-as-leaf comparison.
func flattenDiff(path string, before, after interface{}, changes *[]Change) {
	beforeMap, beforeIsMap := before.(map[string]interface{})
	afterMap, afterIsMap := after.(map[string]interface{})

	if beforeIsMap && afterIsMap {
		keys := unionKeys(beforeMap, afterMap)
		for _, key := range keys {
			currentPath := key
			if path != "" {
				currentPath = path + "." + key
			}
			beforeVal, inBefore := beforeMap[key]
			afterVal, inAfter := afterMap[key]
			switch {
			case !inBefore:
				*changes = append(*changes, Change{Path: currentPath, ChangeType: Added, Before: nil, After: afterVal})
			case !inAfter:
				*changes = append(*changes, Change{Path: currentPath, ChangeType: Removed, Before: beforeVal, After: nil})
			default:
				flattenDiff(currentPath, beforeVal, afterVal, changes)
			}
		}
		return
	}

	if !deepEqual(before, after) {
		effectivePath := path
		if effectivePath == "" {
			effectivePath = "$"
		}
		*changes = append(*changes, Change{Path: effectivePath, ChangeType: Changed, Before: before, After: after})
	}
}

func unionKeys(a, b map[string]interface{}) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func deepEqual(a, b interface{}) bool {
	aJSON, aErr := json.Marshal(a)
	bJSON, bErr := json.Marshal(b)
	if aErr != nil || bErr != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}
