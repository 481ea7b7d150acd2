// Package deadletter implements the Dead-Letter Handler (spec §4.7): a
// durable sink for permanently failed jobs, with list/reprocess/purge
// operations and an alert-rate hook.
package deadletter

import (
	"context"
	"sync"
	"time"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// FailureEvent records one failed attempt on a dead-lettered job.
type FailureEvent struct {
	ErrorClass errs.Code
	Message    string
	OccurredAt time.Time
}

// Entry is a stored dead-letter record.
type Entry struct {
	Job            domain.QueueJob
	Queue          string
	FailureChain   []FailureEvent
	FirstAttemptAt time.Time
	LastAttemptAt  time.Time
}

// Store persists dead-letter entries. The production implementation is
// backed by the Storage Writer's database; a Redis-backed DLQ list (spec
// §6) records membership, this Store records the failure chain detail.
type Store interface {
	Save(ctx context.Context, e Entry) error
	List(ctx context.Context, queue string, limit int) ([]Entry, error)
	Delete(ctx context.Context, jobID domain.JobID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Requeuer puts a reprocessed job back onto its origin queue.
type Requeuer interface {
	Requeue(ctx context.Context, queue string, job domain.QueueJob) error
}

// AlertFunc is invoked when dead-letter arrivals exceed alertThreshold
// within an interval (spec §4.7).
type AlertFunc func(ctx context.Context, queue string, count int, window time.Duration)

// Handler implements list/reprocess/purge plus the arrival-rate alert hook.
type Handler struct {
	store    Store
	requeuer Requeuer

	alertThreshold int
	alertWindow    time.Duration
	onThreshold    AlertFunc

	mu       sync.Mutex
	arrivals map[string][]time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithAlertThreshold sets the arrival-count threshold and the function
// invoked once it is exceeded within window.
func WithAlertThreshold(count int, window time.Duration, fn AlertFunc) Option {
	return func(h *Handler) {
		h.alertThreshold = count
		h.alertWindow = window
		h.onThreshold = fn
	}
}

// New constructs a Handler.
func New(store Store, requeuer Requeuer, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		requeuer: requeuer,
		arrivals: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send records a newly dead-lettered job's failure chain and checks the
// arrival-rate alert hook.
func (h *Handler) Send(ctx context.Context, queue string, job domain.QueueJob, cause error) error {
	now := time.Now()
	entry := Entry{
		Job:   job,
		Queue: queue,
		FailureChain: []FailureEvent{{
			ErrorClass: errs.CodeOf(cause),
			Message:    cause.Error(),
			OccurredAt: now,
		}},
		FirstAttemptAt: job.EnqueuedAt,
		LastAttemptAt:  now,
	}
	if err := h.store.Save(ctx, entry); err != nil {
		return errs.Wrap(errs.CodeDeadLetter, "dead-letter persist failed", err)
	}
	h.recordArrival(ctx, queue, now)
	return nil
}

func (h *Handler) recordArrival(ctx context.Context, queue string, at time.Time) {
	if h.alertThreshold <= 0 {
		return
	}
	h.mu.Lock()
	cutoff := at.Add(-h.alertWindow)
	kept := h.arrivals[queue][:0]
	for _, t := range h.arrivals[queue] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, at)
	h.arrivals[queue] = kept
	count := len(kept)
	h.mu.Unlock()

	if count >= h.alertThreshold && h.onThreshold != nil {
		h.onThreshold(ctx, queue, count, h.alertWindow)
	}
}

// List returns up to limit dead-letter entries for a queue.
func (h *Handler) List(ctx context.Context, queue string, limit int) ([]Entry, error) {
	entries, err := h.store.List(ctx, queue, limit)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDeadLetter, "dead-letter list failed", err)
	}
	return entries, nil
}

// Reprocess hands the job, with attempts reset to 0, to the Requeuer for
// its origin queue (spec §9 open-question decision: reset, not preserve),
// then deletes its dead-letter entry.
func (h *Handler) Reprocess(ctx context.Context, jobID domain.JobID, entry Entry) error {
	job := entry.Job.ResetForReprocessing(time.Now())
	if err := h.requeuer.Requeue(ctx, entry.Queue, job); err != nil {
		return errs.Wrap(errs.CodeDeadLetter, "reprocess requeue failed", err)
	}
	if err := h.store.Delete(ctx, jobID); err != nil {
		return errs.Wrap(errs.CodeDeadLetter, "reprocess cleanup failed", err)
	}
	return nil
}

// Purge deletes entries older than cutoff and returns the count removed.
func (h *Handler) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := h.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errs.Wrap(errs.CodeDeadLetter, "purge failed", err)
	}
	return n, nil
}
