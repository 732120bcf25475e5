package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/sentinel/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndRunOneCompletesJob(t *testing.T) {
	m, em := newTestManager(t)
	sub, cancel := em.Subscribe()
	defer cancel()

	m.RegisterRunner(queue.JobTypeWorldStateBuild, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		return map[string]interface{}{"row_count": 10}, nil
	})

	job, err := m.Submit(queue.JobTypeWorldStateBuild, queue.PriorityHigh, map[string]interface{}{"universe": []string{"AAA"}})
	require.NoError(t, err)

	ran, err := m.RunOne(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	status, err := m.JobStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Contains(t, status.ResultJSON, "row_count")

	var seenQueued, seenRunning, seenCompleted bool
	for i := 0; i < 3; i++ {
		env := <-sub
		switch string(env.Type) {
		case "job.queued":
			seenQueued = true
		case "job.running":
			seenRunning = true
		case "job.completed":
			seenCompleted = true
		}
	}
	assert.True(t, seenQueued)
	assert.True(t, seenRunning)
	assert.True(t, seenCompleted)
}

func TestRunOneMarksJobFailedWhenRunnerErrors(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterRunner(queue.JobTypeCodeStrategyBacktest, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		return nil, errors.New("boom")
	})

	job, err := m.Submit(queue.JobTypeCodeStrategyBacktest, queue.PriorityMedium, nil)
	require.NoError(t, err)

	_, err = m.RunOne(context.Background())
	require.NoError(t, err)

	status, err := m.JobStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
	assert.Contains(t, status.ErrorText, "boom")
}

func TestRunOneFailsJobWithNoRegisteredRunner(t *testing.T) {
	m, _ := newTestManager(t)
	job, err := m.Submit(queue.JobTypeTuningRun, queue.PriorityLow, nil)
	require.NoError(t, err)

	_, err = m.RunOne(context.Background())
	require.NoError(t, err)

	status, err := m.JobStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
}

func TestRunOneOnEmptyQueueReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	ran, err := m.RunOne(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestEventsAfterReturnsStrictlyIncreasingCursor(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterRunner(queue.JobTypeArtifactArchive, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		return map[string]interface{}{}, nil
	})

	_, err := m.Submit(queue.JobTypeArtifactArchive, queue.PriorityLow, nil)
	require.NoError(t, err)
	_, err = m.RunOne(context.Background())
	require.NoError(t, err)

	events, err := m.EventsAfter(0, 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 3) // queued, running, completed

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].ID, events[i-1].ID)
	}
}

func TestPendingCountReflectsQueueSize(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterRunner(queue.JobTypeIngestOHLCV, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		return nil, nil
	})

	_, err := m.Submit(queue.JobTypeIngestOHLCV, queue.PriorityLow, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.PendingCount())

	_, err = m.RunOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, m.PendingCount())
}
