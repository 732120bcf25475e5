package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateJobStatusIsIdempotentOnceTerminal(t *testing.T) {
	s := newTestStore(t, "")
	require.NoError(t, s.CreateJob("job-1", "backtest", `{}`))

	require.NoError(t, s.UpdateJobStatus("job-1", "completed", `{"ok":true}`, ""))

	// a second transition after terminal is a no-op, not an error
	require.NoError(t, s.UpdateJobStatus("job-1", "failed", "", "should be ignored"))

	job, err := s.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, `{"ok":true}`, job.ResultJSON)
}

func TestListJobEventsAfterReturnsStrictlyIncreasing(t *testing.T) {
	s := newTestStore(t, "")
	id1, err := s.AppendJobEvent("job-1", "progress", `{"current":1}`)
	require.NoError(t, err)
	id2, err := s.AppendJobEvent("job-1", "progress", `{"current":2}`)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	events, err := s.ListJobEventsAfter(id1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id2, events[0].ID)
}
