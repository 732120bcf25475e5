package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStateSnapshot is one append-only capture of a session's working
// state, used to reconstruct the deltas a session's tool calls produced.
type SessionStateSnapshot struct {
	ID         string
	SessionID  string
	StateJSON  string
	CreatedAt  time.Time
}

// AppendSessionStateSnapshot appends a new snapshot for a session.
func (s *Store) AppendSessionStateSnapshot(sessionID, stateJSON string) (*SessionStateSnapshot, error) {
	snap := &SessionStateSnapshot{ID: uuid.NewString(), SessionID: sessionID, StateJSON: stateJSON, CreatedAt: time.Now().UTC()}
	_, err := s.db.Conn().Exec(`INSERT INTO session_state_snapshots (id, session_id, state, created_at) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.SessionID, snap.StateJSON, snap.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to append session snapshot: %w", err)
	}
	return snap, nil
}

// ListSessionStateSnapshots returns all snapshots for a session in capture order.
func (s *Store) ListSessionStateSnapshots(sessionID string) ([]*SessionStateSnapshot, error) {
	rows, err := s.db.Conn().Query(`
		SELECT id, session_id, state, created_at FROM session_state_snapshots
		WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SessionStateSnapshot
	for rows.Next() {
		var snap SessionStateSnapshot
		var createdAt string
		if err := rows.Scan(&snap.ID, &snap.SessionID, &snap.StateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan session snapshot: %w", err)
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// ToolContextDelta is one append-only record of what a tool call changed in
// a session's working context, stored as a JSON array of
// {path,change_type,before,after} entries.
type ToolContextDelta struct {
	ID         string
	SessionID  string
	DeltasJSON string
	CreatedAt  time.Time
}

// AppendToolContextDelta appends a delta record for a session.
func (s *Store) AppendToolContextDelta(sessionID, deltasJSON string) (*ToolContextDelta, error) {
	d := &ToolContextDelta{ID: uuid.NewString(), SessionID: sessionID, DeltasJSON: deltasJSON, CreatedAt: time.Now().UTC()}
	_, err := s.db.Conn().Exec(`INSERT INTO tool_context_deltas (id, session_id, deltas, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.SessionID, d.DeltasJSON, d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to append tool context delta: %w", err)
	}
	return d, nil
}

// ListToolContextDeltas returns all delta records for a session in capture order.
func (s *Store) ListToolContextDeltas(sessionID string) ([]*ToolContextDelta, error) {
	rows, err := s.db.Conn().Query(`
		SELECT id, session_id, deltas, created_at FROM tool_context_deltas
		WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool context deltas: %w", err)
	}
	defer rows.Close()

	var out []*ToolContextDelta
	for rows.Next() {
		var d ToolContextDelta
		var createdAt string
		if err := rows.Scan(&d.ID, &d.SessionID, &d.DeltasJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool context delta: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &d)
	}
	return out, rows.Err()
}
