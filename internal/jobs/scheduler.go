package jobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Tick is a unit of periodic work driven by the scheduler; SubmitTick is the
// implementation cmd/server/main.go registers.
type Tick interface {
	Run() error
	Name() string
}

// SubmitTick adapts a job-submission closure into a Tick, letting callers
// schedule "enqueue this job type on a cadence" without a dedicated type
// per job.
type SubmitTick struct {
	TickName string
	Submit   func() error
}

func (t SubmitTick) Run() error   { return t.Submit() }
func (t SubmitTick) Name() string { return t.TickName }

// Scheduler drives Ticks on a cron schedule (seconds resolution).
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins running registered ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop waits for any in-flight tick to finish before returning.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddTick registers a tick on a cron schedule: 6-field cron with a leading
// seconds field (the scheduler is seconds-aware), or "@every 1m"-style
// descriptors.
func (s *Scheduler) AddTick(schedule string, tick Tick) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("tick", tick.Name()).Msg("running tick")
		if err := tick.Run(); err != nil {
			s.log.Error().Err(err).Str("tick", tick.Name()).Msg("tick failed")
			return
		}
		s.log.Debug().Str("tick", tick.Name()).Msg("tick completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("tick", tick.Name()).Msg("tick registered")
	return nil
}

// RunNow runs a tick immediately, bypassing its schedule.
func (s *Scheduler) RunNow(tick Tick) error {
	s.log.Info().Str("tick", tick.Name()).Msg("running tick immediately")
	return tick.Run()
}
