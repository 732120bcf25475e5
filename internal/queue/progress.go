package queue

import (
	"time"

	"github.com/aristath/sentinel/internal/events"
)

// ProgressReporter lets a running job report progress without flooding the
// event bus: reports are throttled to at most one per minInterval, except
// that current == total (100%) always bypasses the throttle.
type ProgressReporter struct {
	eventManager *events.Manager
	jobID        string
	jobType      JobType
	lastReport   time.Time
	minInterval  time.Duration
}

// NewProgressReporter creates a progress reporter throttled to 100ms.
func NewProgressReporter(em *events.Manager, jobID string, jobType JobType) *ProgressReporter {
	return &ProgressReporter{
		eventManager: em,
		jobID:        jobID,
		jobType:      jobType,
		minInterval:  100 * time.Millisecond,
	}
}

// Report emits a progress event, throttled unless current == total.
func (pr *ProgressReporter) Report(current, total int, message string) {
	if pr.eventManager == nil {
		return
	}

	now := time.Now()
	if now.Sub(pr.lastReport) < pr.minInterval && current != total {
		return
	}
	pr.lastReport = now

	pr.eventManager.EmitTyped(events.JobRunning, "queue", JobStatusData(pr.jobID, string(pr.jobType), current, total, "", message))
}

// ReportWithDetails emits a phased progress event, throttled unless at 100%.
func (pr *ProgressReporter) ReportWithDetails(current, total int, message, phase string) {
	if pr.eventManager == nil {
		return
	}

	now := time.Now()
	if now.Sub(pr.lastReport) < pr.minInterval && current != total {
		return
	}
	pr.lastReport = now

	pr.eventManager.EmitTyped(events.JobRunning, "queue", JobStatusData(pr.jobID, string(pr.jobType), current, total, phase, message))
}

// ReportUnthrottled always emits, bypassing the throttle; use for critical
// milestones (queued, completed, failed).
func (pr *ProgressReporter) ReportUnthrottled(current, total int, message string) {
	if pr.eventManager == nil {
		return
	}
	pr.lastReport = time.Now()
	pr.eventManager.EmitTyped(events.JobRunning, "queue", JobStatusData(pr.jobID, string(pr.jobType), current, total, "", message))
}

// JobStatusData builds the typed event payload for a job progress report.
func JobStatusData(jobID, jobType string, current, total int, phase, message string) events.JobStatusData {
	return events.JobStatusData{
		JobID:   jobID,
		JobType: jobType,
		Status:  "progress",
		Message: message,
		Progress: &events.ProgressInfo{
			Current: current,
			Total:   total,
			Phase:   phase,
		},
	}
}
