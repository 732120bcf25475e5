package store

import (
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/observability"
)

// AppendAuditEvent merges the ambient trace id, redacts the payload per the
// secrets-redaction contract, and appends an immutable audit row.
func (s *Store) AppendAuditEvent(traceID, eventType string, payload map[string]interface{}) error {
	redacted := observability.RedactPayload(payload)
	payloadJSON, err := marshalJSON(redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	_, err = s.db.Conn().Exec(`INSERT INTO audit_events (event_type, payload, trace_id, created_at) VALUES (?, ?, ?, ?)`,
		eventType, payloadJSON, traceID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
