package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
)

// CreateOAuthState inserts a new pending (unconsumed) OAuth state.
func (s *Store) CreateOAuthState(connector, state string) error {
	_, err := s.db.Conn().Exec(`INSERT INTO oauth_states (state, connector, created_at, consumed_at) VALUES (?, ?, ?, NULL)`,
		state, connector, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState consumes a specific (connector, state) pair at most
// once: the row must exist, be unconsumed, and younger than maxAge. The
// guard is the UPDATE ... WHERE consumed_at IS NULL with a rowcount==1
// check, so a concurrent double-consume can only ever succeed once.
func (s *Store) ConsumeOAuthState(connector, state string, maxAge time.Duration) error {
	return withTx(s.db.Conn(), func(tx *sql.Tx) error {
		var createdAtStr string
		var consumedAt sql.NullString
		err := tx.QueryRow(`SELECT created_at, consumed_at FROM oauth_states WHERE connector = ? AND state = ?`,
			connector, state).Scan(&createdAtStr, &consumedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				return errkind.Newf(errkind.NotFound, "oauth state not found: connector=%s", connector)
			}
			return fmt.Errorf("failed to read oauth state: %w", err)
		}
		if consumedAt.Valid {
			return errkind.Newf(errkind.Conflict, "oauth state already consumed: connector=%s", connector)
		}

		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return fmt.Errorf("failed to parse oauth state created_at: %w", err)
		}
		if time.Since(createdAt) >= maxAge {
			return errkind.Newf(errkind.Invalid, "oauth state expired: connector=%s", connector)
		}

		res, err := tx.Exec(`UPDATE oauth_states SET consumed_at = ? WHERE connector = ? AND state = ? AND consumed_at IS NULL`,
			time.Now().UTC().Format(time.RFC3339Nano), connector, state)
		if err != nil {
			return fmt.Errorf("failed to consume oauth state: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n != 1 {
			return errkind.Newf(errkind.Internal, "expected rowcount=1 consuming oauth state, got %d", n)
		}
		return nil
	})
}

// ConsumeLatestOAuthState consumes the single pending state for a connector.
// Exactly one pending state must exist; zero or more than one is an error.
func (s *Store) ConsumeLatestOAuthState(connector string, maxAge time.Duration) (string, error) {
	var consumedState string
	err := withTx(s.db.Conn(), func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT state, created_at FROM oauth_states WHERE connector = ? AND consumed_at IS NULL`, connector)
		if err != nil {
			return fmt.Errorf("failed to query pending oauth states: %w", err)
		}
		type pending struct {
			state     string
			createdAt time.Time
		}
		var candidates []pending
		for rows.Next() {
			var st, createdAtStr string
			if err := rows.Scan(&st, &createdAtStr); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan pending oauth state: %w", err)
			}
			createdAt, _ := time.Parse(time.RFC3339Nano, createdAtStr)
			candidates = append(candidates, pending{state: st, createdAt: createdAt})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate pending oauth states: %w", err)
		}

		if len(candidates) == 0 {
			return errkind.Newf(errkind.NotFound, "no pending oauth state for connector=%s", connector)
		}
		if len(candidates) > 1 {
			return errkind.Newf(errkind.Conflict, "multiple pending oauth states for connector=%s", connector)
		}

		p := candidates[0]
		if time.Since(p.createdAt) >= maxAge {
			return errkind.Newf(errkind.Invalid, "oauth state expired: connector=%s", connector)
		}

		res, err := tx.Exec(`UPDATE oauth_states SET consumed_at = ? WHERE connector = ? AND state = ? AND consumed_at IS NULL`,
			time.Now().UTC().Format(time.RFC3339Nano), connector, p.state)
		if err != nil {
			return fmt.Errorf("failed to consume latest oauth state: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n != 1 {
			return errkind.Newf(errkind.Internal, "expected rowcount=1 consuming latest oauth state, got %d", n)
		}
		consumedState = p.state
		return nil
	})
	if err != nil {
		return "", err
	}
	return consumedState, nil
}
