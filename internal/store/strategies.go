package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
)

// CodeStrategyVersion is one immutable, append-only version of a strategy.
type CodeStrategyVersion struct {
	ID            string
	StrategyID    string
	VersionNumber int
	SourceCode    string
	Validation    string // JSON
	CreatedAt     time.Time
}

// SaveStrategyVersion upserts the strategy by id (creating it with name if
// absent) and inserts the next monotonic version for it, all within one
// transaction: next_version = max(version_number) + 1, starting at 1.
func (s *Store) SaveStrategyVersion(strategyID, name, versionID, sourceCode, validationJSON string) (*CodeStrategyVersion, error) {
	if strategyID == "" || name == "" || versionID == "" {
		return nil, errkind.New(errkind.Invalid, "strategy_id, name, and version_id are required")
	}

	now := time.Now().UTC()
	var version *CodeStrategyVersion

	err := withTx(s.db.Conn(), func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM code_strategies WHERE id = ?`, strategyID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check strategy existence: %w", err)
		}
		if exists == 0 {
			if _, err := tx.Exec(`INSERT INTO code_strategies (id, name, created_at) VALUES (?, ?, ?)`,
				strategyID, name, now.Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("failed to insert strategy: %w", err)
			}
		}

		var maxVersion sql.NullInt64
		if err := tx.QueryRow(`SELECT MAX(version_number) FROM code_strategy_versions WHERE strategy_id = ?`, strategyID).Scan(&maxVersion); err != nil {
			return fmt.Errorf("failed to read max version: %w", err)
		}
		next := 1
		if maxVersion.Valid {
			next = int(maxVersion.Int64) + 1
		}

		if _, err := tx.Exec(`INSERT INTO code_strategy_versions (id, strategy_id, version_number, source_code, validation, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			versionID, strategyID, next, sourceCode, validationJSON, now.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert strategy version: %w", err)
		}

		version = &CodeStrategyVersion{
			ID:            versionID,
			StrategyID:    strategyID,
			VersionNumber: next,
			SourceCode:    sourceCode,
			Validation:    validationJSON,
			CreatedAt:     now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// GetLatestStrategyVersion returns the highest version_number row for a
// strategy, or NotFound if none exists.
func (s *Store) GetLatestStrategyVersion(strategyID string) (*CodeStrategyVersion, error) {
	row := s.db.Conn().QueryRow(`
		SELECT id, strategy_id, version_number, source_code, validation, created_at
		FROM code_strategy_versions
		WHERE strategy_id = ?
		ORDER BY version_number DESC
		LIMIT 1`, strategyID)

	var v CodeStrategyVersion
	var createdAt string
	if err := row.Scan(&v.ID, &v.StrategyID, &v.VersionNumber, &v.SourceCode, &v.Validation, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "no strategy version found for strategy_id=%s", strategyID)
		}
		return nil, fmt.Errorf("failed to get latest strategy version: %w", err)
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &v, nil
}

// GetStrategyVersion returns a specific version row by id.
func (s *Store) GetStrategyVersion(versionID string) (*CodeStrategyVersion, error) {
	row := s.db.Conn().QueryRow(`
		SELECT id, strategy_id, version_number, source_code, validation, created_at
		FROM code_strategy_versions WHERE id = ?`, versionID)

	var v CodeStrategyVersion
	var createdAt string
	if err := row.Scan(&v.ID, &v.StrategyID, &v.VersionNumber, &v.SourceCode, &v.Validation, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "strategy version not found: %s", versionID)
		}
		return nil, fmt.Errorf("failed to get strategy version: %w", err)
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &v, nil
}
