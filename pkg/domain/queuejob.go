package domain

import "time"

// JobState tracks a QueueJob through the reliable-delivery pipeline (spec §4.5-§4.7).
type JobState string

const (
	JobQueued       JobState = "queued"
	JobActive       JobState = "active"
	JobCompleted    JobState = "completed"
	JobRetrying     JobState = "retrying"
	JobDeadLettered JobState = "dead_lettered"
)

// QueueJob wraps a sealed AuditEvent as it moves through the durable queue.
type QueueJob struct {
	ID           JobID      `json:"id"`
	Event        AuditEvent `json:"event"`
	State        JobState   `json:"state"`
	Priority     int        `json:"priority"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"maxAttempts"`
	EnqueuedAt   time.Time  `json:"enqueuedAt"`
	NextAttempt  time.Time  `json:"nextAttempt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	DeadLetterAt *time.Time `json:"deadLetterAt,omitempty"`
}

// ExhaustedRetries reports whether the job has used up its attempt budget.
func (j QueueJob) ExhaustedRetries() bool {
	return j.Attempts >= j.MaxAttempts
}

// ResetForReprocessing implements the Dead-Letter Handler's reprocess
// operation (spec §4.7): attempts resets to 0, state returns to queued.
func (j QueueJob) ResetForReprocessing(now time.Time) QueueJob {
	j.Attempts = 0
	j.State = JobQueued
	j.NextAttempt = now
	j.LastError = ""
	j.DeadLetterAt = nil
	return j
}
