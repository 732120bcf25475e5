package ratelimit

import (
	"testing"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderLimitRejectsUnknownProvider(t *testing.T) {
	_, err := ProviderLimit("unknown-broker")
	require.Error(t, err)
	assert.Equal(t, errkind.Invalid, errkind.KindOf(err))
}

func TestProviderLimitHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("FIN_AGENT_RATE_LIMIT_KITE_MAX_REQUESTS", "3")
	t.Setenv("FIN_AGENT_RATE_LIMIT_KITE_WINDOW_SECONDS", "5")

	limit, err := ProviderLimit("kite")
	require.NoError(t, err)
	assert.Equal(t, 3, limit.MaxRequests)
	assert.Equal(t, 5, limit.WindowSeconds)
}

func TestGateEnforceAllowsUpToMaxRequests(t *testing.T) {
	t.Setenv("FIN_AGENT_RATE_LIMIT_TRADINGVIEW_MAX_REQUESTS", "2")
	t.Setenv("FIN_AGENT_RATE_LIMIT_TRADINGVIEW_WINDOW_SECONDS", "60")

	g := NewGate()
	r1, err := g.Enforce("tradingview")
	require.NoError(t, err)
	assert.Equal(t, 1, r1.RemainingInWindow)

	r2, err := g.Enforce("tradingview")
	require.NoError(t, err)
	assert.Equal(t, 0, r2.RemainingInWindow)
}

func TestGateEnforceRejectsOnceBudgetExhausted(t *testing.T) {
	t.Setenv("FIN_AGENT_RATE_LIMIT_NSE_MAX_REQUESTS", "1")
	t.Setenv("FIN_AGENT_RATE_LIMIT_NSE_WINDOW_SECONDS", "60")

	g := NewGate()
	_, err := g.Enforce("nse")
	require.NoError(t, err)

	_, err = g.Enforce("nse")
	require.Error(t, err)
	assert.Equal(t, errkind.RateLimited, errkind.KindOf(err))
	assert.Contains(t, err.Error(), "provider_rate_limited provider=nse")
}

func TestGateResetClearsState(t *testing.T) {
	t.Setenv("FIN_AGENT_RATE_LIMIT_KITE_MAX_REQUESTS", "1")
	t.Setenv("FIN_AGENT_RATE_LIMIT_KITE_WINDOW_SECONDS", "60")

	g := NewGate()
	_, err := g.Enforce("kite")
	require.NoError(t, err)

	_, err = g.Enforce("kite")
	require.Error(t, err)

	g.Reset()
	_, err = g.Enforce("kite")
	require.NoError(t, err)
}
