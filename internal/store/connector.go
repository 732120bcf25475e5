package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
)

// ConnectorSession is the persisted credential/token bundle for one broker
// connector. PayloadJSON is ciphertext when a store encryption key is
// configured, plaintext JSON otherwise.
type ConnectorSession struct {
	Connector   string
	PayloadJSON string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertConnectorSession encrypts payloadJSON (if a key is configured) and
// writes the single row for this connector.
func (s *Store) UpsertConnectorSession(connector, payloadJSON string) error {
	sealed, err := s.cipher.Encrypt(payloadJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt connector session: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Conn().Exec(`
		INSERT INTO connector_sessions (connector, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(connector) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		connector, sealed, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert connector session: %w", err)
	}
	return nil
}

// GetConnectorSession returns the decrypted payload for a connector.
func (s *Store) GetConnectorSession(connector string) (*ConnectorSession, error) {
	row := s.db.Conn().QueryRow(`
		SELECT connector, payload, created_at, updated_at FROM connector_sessions WHERE connector = ?`, connector)

	var cs ConnectorSession
	var payload, createdAt, updatedAt string
	if err := row.Scan(&cs.Connector, &payload, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "connector session not found: %s", connector)
		}
		return nil, fmt.Errorf("failed to get connector session: %w", err)
	}

	plain, err := s.cipher.Decrypt(payload)
	if err != nil {
		return nil, errkind.Wrap(errkind.ReauthRequired, err, "failed to decrypt connector session")
	}
	cs.PayloadJSON = plain
	cs.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	cs.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &cs, nil
}

// DeleteConnectorSession removes a connector's stored session, used when a
// reauth flow needs to start clean.
func (s *Store) DeleteConnectorSession(connector string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM connector_sessions WHERE connector = ?`, connector)
	if err != nil {
		return fmt.Errorf("failed to delete connector session: %w", err)
	}
	return nil
}
