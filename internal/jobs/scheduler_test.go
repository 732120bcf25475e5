package jobs

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunNowInvokesTickImmediately(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	ran := false
	tick := SubmitTick{TickName: "test-tick", Submit: func() error {
		ran = true
		return nil
	}}

	require.NoError(t, s.RunNow(tick))
	assert.True(t, ran)
}

func TestSchedulerAddTickRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	tick := SubmitTick{TickName: "bad-tick", Submit: func() error { return nil }}
	err := s.AddTick("not-a-valid-cron-expression", tick)
	assert.Error(t, err)
}

func TestSchedulerStartStopIsSafe(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	require.NoError(t, s.AddTick("@every 1h", SubmitTick{TickName: "noop", Submit: func() error { return nil }}))
	s.Start()
	s.Stop()
}
