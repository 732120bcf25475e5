// Package ratelimit implements the per-provider sliding-window rate limiter
// (C11): a process-wide lock guards a per-provider list of call
// timestamps. Enforce drops timestamps older than the configured window
// and fails synchronously with retry_after_seconds when the provider is
// already at its request budget; there is no queuing, backpressure is
// expressed purely as failure.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/errkind"
)

// Limit is the effective (max_requests, window_seconds) for a provider.
type Limit struct {
	MaxRequests   int
	WindowSeconds int
}

var defaultLimits = map[string]Limit{
	"kite":        {MaxRequests: 20, WindowSeconds: 1},
	"nse":         {MaxRequests: 10, WindowSeconds: 1},
	"tradingview": {MaxRequests: 5, WindowSeconds: 1},
}

// ProviderLimit resolves the effective limit for a provider: environment
// overrides (FIN_AGENT_RATE_LIMIT_<PROVIDER>_MAX_REQUESTS/_WINDOW_SECONDS)
// win, falling back to the built-in default. Unknown providers are
// rejected rather than silently unlimited.
func ProviderLimit(provider string) (Limit, error) {
	key := strings.ToLower(strings.TrimSpace(provider))
	def, ok := defaultLimits[key]
	if !ok {
		return Limit{}, errkind.Newf(errkind.Invalid, "unsupported provider for rate limit: %s", provider)
	}
	maxRequests, windowSeconds := config.RateLimitConfig(key, def.MaxRequests, def.WindowSeconds)
	return Limit{MaxRequests: maxRequests, WindowSeconds: windowSeconds}, nil
}

// Gate is a process-wide sliding-window limiter shared by every call site
// for a given provider.
type Gate struct {
	mu    sync.Mutex
	calls map[string][]time.Time
}

// NewGate creates an empty rate gate.
func NewGate() *Gate {
	return &Gate{calls: make(map[string][]time.Time)}
}

// Result reports the outcome of a successful Enforce call.
type Result struct {
	Provider          string `json:"provider"`
	MaxRequests       int    `json:"max_requests"`
	WindowSeconds     int    `json:"window_seconds"`
	RemainingInWindow int    `json:"remaining_in_window"`
}

// Enforce records a call attempt for provider. It fails with an
// errkind.RateLimited error carrying retry_after_seconds if the provider
// has already used its full budget within the current window.
func (g *Gate) Enforce(provider string) (*Result, error) {
	limit, err := ProviderLimit(provider)
	if err != nil {
		return nil, err
	}

	window := time.Duration(limit.WindowSeconds) * time.Second
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	kept := make([]time.Time, 0, len(g.calls[provider]))
	for _, t := range g.calls[provider] {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit.MaxRequests {
		retryAfter := window - now.Sub(kept[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		g.calls[provider] = kept
		return nil, errkind.RateLimitedf(provider, retryAfter.Seconds())
	}

	kept = append(kept, now)
	g.calls[provider] = kept

	return &Result{
		Provider: provider, MaxRequests: limit.MaxRequests, WindowSeconds: limit.WindowSeconds,
		RemainingInWindow: limit.MaxRequests - len(kept),
	}, nil
}

// Reset clears every recorded call timestamp.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string][]time.Time)
}
