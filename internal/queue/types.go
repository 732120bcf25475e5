// Package queue defines the async job primitives used by the job manager
// (C10): job types, priorities, and the Queue interface. Persistence of Job
// rows and the job_events cursor lives in internal/store; this package is
// the in-memory shape shared between the HTTP layer, the job manager, and
// individual job runners.
package queue

import "time"

// JobType identifies the kind of work a Job performs.
type JobType string

const (
	JobTypeIngestOHLCV            JobType = "ingest.ohlcv"
	JobTypeIngestFundamentals     JobType = "ingest.fundamentals"
	JobTypeIngestCorporateActions JobType = "ingest.corporate_actions"
	JobTypeIngestRatings          JobType = "ingest.ratings"
	JobTypeIngestTechnicals       JobType = "ingest.technicals"
	JobTypeWorldStateBuild        JobType = "world_state.build"
	JobTypeCodeStrategyBacktest   JobType = "code_strategy.backtest"
	JobTypeTuningRun              JobType = "tuning.run"
	JobTypeLiveSnapshotRefresh    JobType = "live.snapshot_refresh"
	JobTypeArtifactArchive        JobType = "artifact.archive"
)

// Priority orders jobs within a queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Job is a unit of async work.
type Job struct {
	ID          string
	Type        JobType
	Priority    Priority
	Payload     map[string]interface{}
	CreatedAt   time.Time
	AvailableAt time.Time
	Retries     int
	MaxRetries  int

	progressReporter *ProgressReporter
}

// GetProgressReporter returns the progress reporter for this job, or nil if
// none is attached. Returns interface{} so call sites that only know about
// a generic job-runner interface don't need to import this package to type
// the field; callers here type-assert to *ProgressReporter.
func (j *Job) GetProgressReporter() interface{} {
	if j.progressReporter == nil {
		return nil
	}
	return j.progressReporter
}

// SetProgressReporter attaches a progress reporter, used by the job manager
// right before dispatching a job to its runner.
func (j *Job) SetProgressReporter(pr *ProgressReporter) {
	j.progressReporter = pr
}

// Queue is the minimal in-memory queue contract; internal/jobs' priority
// heap implements it, and jobs.Manager pairs that heap with the durable
// jobs table.
type Queue interface {
	Enqueue(job *Job) error
	Dequeue() (*Job, error)
	Size() int
}

// jobDescriptions gives a human-readable label per job type, used in
// progress/status payloads surfaced to API clients.
var jobDescriptions = map[JobType]string{
	JobTypeIngestOHLCV:            "Importing OHLCV rows",
	JobTypeIngestFundamentals:     "Importing fundamentals rows",
	JobTypeIngestCorporateActions: "Importing corporate action rows",
	JobTypeIngestRatings:          "Importing analyst rating rows",
	JobTypeIngestTechnicals:       "Backfilling technical features",
	JobTypeWorldStateBuild:        "Building world-state manifest",
	JobTypeCodeStrategyBacktest:   "Running code-strategy backtest",
	JobTypeTuningRun:              "Running parameter tuning search",
	JobTypeLiveSnapshotRefresh:    "Refreshing live snapshot",
	JobTypeArtifactArchive:        "Archiving run artifacts",
}

// GetJobDescription returns a human-readable description for a job type,
// falling back to the raw type string for unrecognized types.
func GetJobDescription(jobType JobType) string {
	if desc, ok := jobDescriptions[jobType]; ok {
		return desc
	}
	return string(jobType)
}
