// Package jobs implements the job manager and event bus (C10): jobs submitted
// through Manager.Submit are persisted durably (internal/store owns the
// queued/running/completed/failed state machine), held in an in-memory
// priority queue, and dispatched to per-type Runner functions by a pool of
// worker goroutines. Every lifecycle transition appends a monotonically
// numbered job_events row (the SSE cursor contract) and, if an event bus is
// attached, broadcasts it in-process too.
package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/queue"
	"github.com/aristath/sentinel/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dequeuePollInterval = 100 * time.Millisecond

// Runner executes one job's payload and returns a JSON-marshalable result.
type Runner func(ctx context.Context, job *queue.Job) (interface{}, error)

// Manager dispatches queued jobs to registered runners.
type Manager struct {
	queue  *priorityQueue
	store  *store.Store
	events *events.Manager
	log    zerolog.Logger

	mu      sync.RWMutex
	runners map[queue.JobType]Runner
}

// New creates a job manager. eventManager may be nil: jobs still persist
// durably, but nothing is broadcast to in-process subscribers.
func New(stateStore *store.Store, eventManager *events.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		queue:   newPriorityQueue(),
		store:   stateStore,
		events:  eventManager,
		log:     log.With().Str("component", "jobs").Logger(),
		runners: make(map[queue.JobType]Runner),
	}
}

// RegisterRunner binds a job type to the function that executes it. Call
// before Start; a job type with no registered runner fails immediately
// when dequeued.
func (m *Manager) RegisterRunner(jobType queue.JobType, runner Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runners[jobType] = runner
}

// Submit persists a new job in the queued state, enqueues it in memory, and
// emits job.queued.
func (m *Manager) Submit(jobType queue.JobType, priority queue.Priority, payload map[string]interface{}) (*queue.Job, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, err, "failed to marshal job payload")
	}

	id := uuid.NewString()
	if err := m.store.CreateJob(id, string(jobType), string(payloadJSON)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &queue.Job{ID: id, Type: jobType, Priority: priority, Payload: payload, CreatedAt: now, AvailableAt: now}
	if err := m.queue.Enqueue(job); err != nil {
		return nil, err
	}

	m.publish(id, events.JobQueued, queue.JobStatusData(id, string(jobType), 0, 0, "", "queued"))
	return job, nil
}

// Start launches the given number of worker goroutines, each pulling jobs
// from the queue until ctx is canceled.
func (m *Manager) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go m.workerLoop(ctx)
	}
}

func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.queue.Dequeue()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeuePollInterval):
			}
			continue
		}
		m.run(ctx, job)
	}
}

// RunOne dequeues and runs a single job synchronously, returning false if
// the queue was empty. Exposed for tests and for a synchronous drain mode.
func (m *Manager) RunOne(ctx context.Context) (bool, error) {
	job, err := m.queue.Dequeue()
	if err != nil {
		return false, nil
	}
	m.run(ctx, job)
	return true, nil
}

// PendingCount returns the number of jobs waiting in the in-memory queue.
func (m *Manager) PendingCount() int { return m.queue.Size() }

// JobStatus returns the durable status row for a submitted job.
func (m *Manager) JobStatus(id string) (*store.Job, error) {
	return m.store.GetJob(id)
}

// EventsAfter returns job events with id > cursor, in id order, the SSE
// replay contract.
func (m *Manager) EventsAfter(cursor int64, limit int) ([]*store.JobEvent, error) {
	return m.store.ListJobEventsAfter(cursor, limit)
}

func (m *Manager) run(ctx context.Context, job *queue.Job) {
	m.mu.RLock()
	runner, ok := m.runners[job.Type]
	m.mu.RUnlock()
	if !ok {
		m.fail(job, errkind.Newf(errkind.Invalid, "no runner registered for job type %s", job.Type))
		return
	}

	job.SetProgressReporter(queue.NewProgressReporter(m.events, job.ID, job.Type))

	if err := m.store.UpdateJobStatus(job.ID, "running", "", ""); err != nil {
		m.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job running")
	}
	m.publish(job.ID, events.JobRunning, queue.JobStatusData(job.ID, string(job.Type), 0, 0, "", "running"))

	result, err := runner(ctx, job)
	if err != nil {
		m.fail(job, err)
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		m.fail(job, errkind.Wrap(errkind.Internal, err, "failed to marshal job result"))
		return
	}

	if err := m.store.UpdateJobStatus(job.ID, "completed", string(resultJSON), ""); err != nil {
		m.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job completed")
	}
	m.publish(job.ID, events.JobCompleted, queue.JobStatusData(job.ID, string(job.Type), 1, 1, "", "completed"))
}

func (m *Manager) fail(job *queue.Job, jobErr error) {
	if err := m.store.UpdateJobStatus(job.ID, "failed", "", jobErr.Error()); err != nil {
		m.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job failed")
	}
	data := events.JobStatusData{JobID: job.ID, JobType: string(job.Type), Status: "failed", Error: jobErr.Error()}
	m.publish(job.ID, events.JobFailed, data)
	m.log.Warn().Err(jobErr).Str("job_id", job.ID).Msg("job failed")
}

// publish appends the durable, monotonically numbered event row and, if an
// event bus is attached, broadcasts it to in-process subscribers.
func (m *Manager) publish(jobID string, eventType events.EventType, data events.Data) {
	payloadJSON, err := json.Marshal(data)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to marshal event payload")
		return
	}
	if _, err := m.store.AppendJobEvent(jobID, string(eventType), string(payloadJSON)); err != nil {
		m.log.Error().Err(err).Msg("failed to append job event")
	}
	if m.events != nil {
		m.events.EmitTyped(eventType, "jobs", data)
	}
}
