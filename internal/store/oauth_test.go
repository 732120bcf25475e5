package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeOAuthStateConsumesAtMostOnce(t *testing.T) {
	s := newTestStore(t, "")
	require.NoError(t, s.CreateOAuthState("kite", "state-123"))

	err := s.ConsumeOAuthState("kite", "state-123", time.Hour)
	require.NoError(t, err)

	err = s.ConsumeOAuthState("kite", "state-123", time.Hour)
	assert.Error(t, err)
}

func TestConsumeOAuthStateExpired(t *testing.T) {
	s := newTestStore(t, "")
	require.NoError(t, s.CreateOAuthState("kite", "state-expired"))

	err := s.ConsumeOAuthState("kite", "state-expired", -time.Second)
	assert.Error(t, err)
}

func TestConsumeLatestOAuthStateRequiresExactlyOnePending(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.ConsumeLatestOAuthState("kite", time.Hour)
	assert.Error(t, err)

	require.NoError(t, s.CreateOAuthState("kite", "only-one"))
	state, err := s.ConsumeLatestOAuthState("kite", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "only-one", state)

	require.NoError(t, s.CreateOAuthState("kite", "dup-a"))
	require.NoError(t, s.CreateOAuthState("kite", "dup-b"))
	_, err = s.ConsumeLatestOAuthState("kite", time.Hour)
	assert.Error(t, err)
}
