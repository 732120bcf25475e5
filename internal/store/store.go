// Package store implements the durable relational store (C1): strategies,
// versions, backtest/tuning runs, live state, jobs, audit events, OAuth
// state, connector sessions, the kite candle cache, and session ledger
// rows. It owns state.db exclusively; no other package writes these tables.
package store

import (
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel/internal/database"
	"github.com/rs/zerolog"
)

// Store wraps the relational database connection for this domain.
type Store struct {
	db     *database.DB
	log    zerolog.Logger
	cipher *fieldCipher
}

// New creates a Store and applies the relational schema. encryptionKey is
// the raw FIN_AGENT_ENCRYPTION_KEY value; an empty string disables
// encryption for connector credentials, and fields already written with the
// "enc:v1:" prefix become unreadable until a key is configured again.
func New(db *database.DB, log zerolog.Logger, encryptionKey string) (*Store, error) {
	c, err := newCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, log: log.With().Str("component", "store").Logger(), cipher: c}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return s, nil
}

// Conn exposes the raw *sql.DB for callers that need direct access
// (e.g. the screener's read-only analytical queries against a view).
func (s *Store) Conn() *sql.DB { return s.db.Conn() }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func stringOrEmpty(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
