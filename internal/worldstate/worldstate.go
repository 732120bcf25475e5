// Package worldstate builds and validates frozen point-in-time data
// snapshots (C3's PIT validator and C4's manifest builder): completeness
// reporting, leak detection, and the deterministic manifest hash that
// freezes a (universe, date range, adjustment policy) selection.
package worldstate

import (
	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

var validAdjustmentPolicies = map[string]bool{
	"none": true, "split_adjusted": true, "total_return": true,
}

// Builder wires the analytics store (the source of truth for rows) and the
// durable store (manifest persistence) together.
type Builder struct {
	analytics *analytics.Store
	store     *store.Store
	log       zerolog.Logger
}

// New creates a Builder.
func New(analyticsStore *analytics.Store, stateStore *store.Store, log zerolog.Logger) *Builder {
	return &Builder{analytics: analyticsStore, store: stateStore, log: log.With().Str("component", "worldstate").Logger()}
}
