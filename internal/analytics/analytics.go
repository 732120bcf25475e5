// Package analytics implements the columnar PIT data store (C2): OHLCV,
// fundamentals, corporate actions, ratings, instruments, and quotes. It owns
// analytics.db exclusively; world-state and backtest code read through this
// package rather than querying the database directly.
package analytics

import (
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel/internal/database"
	"github.com/rs/zerolog"
)

// Store wraps the analytics database connection.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New creates a Store and applies the columnar schema.
func New(db *database.DB, log zerolog.Logger) (*Store, error) {
	s := &Store{db: db, log: log.With().Str("component", "analytics").Logger()}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate analytics database: %w", err)
	}
	return s, nil
}

// Conn exposes the raw *sql.DB for the screener's compiled read-only queries.
func (s *Store) Conn() *sql.DB { return s.db.Conn() }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func symbolArgs(universe []string) []interface{} {
	args := make([]interface{}, len(universe))
	for i, sym := range universe {
		args[i] = sym
	}
	return args
}
