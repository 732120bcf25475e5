package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusDataEventType(t *testing.T) {
	data := JobStatusData{JobID: "j1", JobType: "backtest.run", Status: "running"}
	assert.Equal(t, JobRunning, data.EventType())
}

func TestManagerEmitAssignsIncreasingSeq(t *testing.T) {
	m := NewManager()
	ch, cancel := m.Subscribe()
	defer cancel()

	first := m.EmitTyped(WorldStateBuilt, "worldstate", WorldStateBuiltData{ManifestID: "m1", RowCount: 10})
	second := m.EmitTyped(WorldStateBuilt, "worldstate", WorldStateBuiltData{ManifestID: "m2", RowCount: 20})

	require.Less(t, first.Seq, second.Seq)

	select {
	case env := <-ch:
		assert.Equal(t, first.Seq, env.Seq)
	case <-time.After(time.Second):
		t.Fatal("expected first envelope on subscriber channel")
	}
	select {
	case env := <-ch:
		assert.Equal(t, second.Seq, env.Seq)
	case <-time.After(time.Second):
		t.Fatal("expected second envelope on subscriber channel")
	}
}

func TestManagerCancelClosesChannel(t *testing.T) {
	m := NewManager()
	ch, cancel := m.Subscribe()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
}

func TestManagerDoesNotBlockOnSlowSubscriber(t *testing.T) {
	m := NewManager()
	_, cancel := m.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			m.EmitTyped(JobQueued, "jobs", JobStatusData{JobID: "j", Status: "queued"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("EmitTyped blocked on a full subscriber channel")
	}
}
