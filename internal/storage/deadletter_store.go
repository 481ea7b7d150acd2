package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"auditcore/internal/deadletter"
	"auditcore/internal/queue"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// DeadLetterStore persists the Dead-Letter Handler's failure-chain detail in
// Postgres (spec §4.7), separate from the Redis `Q:dlq` membership list
// which the Queue backend maintains for fast existence checks.
type DeadLetterStore struct {
	db *DBClient
}

// NewDeadLetterStore constructs a DeadLetterStore.
func NewDeadLetterStore(db *DBClient) *DeadLetterStore {
	return &DeadLetterStore{db: db}
}

// Save upserts e, replacing any prior failure chain for the same job.
func (s *DeadLetterStore) Save(ctx context.Context, e deadletter.Entry) error {
	chain, err := json.Marshal(e.FailureChain)
	if err != nil {
		return errs.Wrap(errs.CodeValidation, "marshal dead-letter failure chain failed", err)
	}
	job, err := json.Marshal(e.Job)
	if err != nil {
		return errs.Wrap(errs.CodeValidation, "marshal dead-letter job failed", err)
	}

	const stmt = `
INSERT INTO dead_letter_entries (
	job_id, queue_name, job, failure_chain, first_attempt_at, last_attempt_at
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_id) DO UPDATE SET
	job = EXCLUDED.job,
	failure_chain = EXCLUDED.failure_chain,
	last_attempt_at = EXCLUDED.last_attempt_at`

	_, execErr := s.db.Pool().Exec(ctx, stmt, e.Job.ID.String(), e.Queue, job, chain, e.FirstAttemptAt, e.LastAttemptAt)
	if execErr != nil {
		return errs.Wrap(errs.CodeTransient, "save dead-letter entry failed", execErr)
	}
	return nil
}

// List returns up to limit entries for queue, most recent first.
func (s *DeadLetterStore) List(ctx context.Context, queue string, limit int) ([]deadletter.Entry, error) {
	const stmt = `
SELECT job_id, queue_name, job, failure_chain, first_attempt_at, last_attempt_at
FROM dead_letter_entries
WHERE queue_name = $1
ORDER BY last_attempt_at DESC
LIMIT $2`

	rows, err := s.db.Pool().Query(ctx, stmt, queue, limit)
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "list dead-letter entries failed", err)
	}
	defer rows.Close()

	var entries []deadletter.Entry
	for rows.Next() {
		entry, err := scanDeadLetterEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes the entry for jobID.
func (s *DeadLetterStore) Delete(ctx context.Context, jobID domain.JobID) error {
	_, err := s.db.Pool().Exec(ctx, `DELETE FROM dead_letter_entries WHERE job_id = $1`, jobID.String())
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "delete dead-letter entry failed", err)
	}
	return nil
}

// DeleteOlderThan removes entries whose last attempt precedes cutoff,
// returning the count removed (spec §4.7 purge operation).
func (s *DeadLetterStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Pool().Exec(ctx, `DELETE FROM dead_letter_entries WHERE last_attempt_at < $1`, cutoff)
	if err != nil {
		return 0, errs.Wrap(errs.CodeTransient, "purge dead-letter entries failed", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanDeadLetterEntry(rows pgx.Rows) (deadletter.Entry, error) {
	var (
		jobIDStr           string
		queueName          string
		jobJSON, chainJSON []byte
		firstAt, lastAt    time.Time
	)
	if err := rows.Scan(&jobIDStr, &queueName, &jobJSON, &chainJSON, &firstAt, &lastAt); err != nil {
		return deadletter.Entry{}, errs.Wrap(errs.CodeTransient, "scan dead-letter entry failed", err)
	}

	var job domain.QueueJob
	if err := json.Unmarshal(jobJSON, &job); err != nil {
		return deadletter.Entry{}, errs.Wrap(errs.CodeValidation, "unmarshal dead-letter job failed", err)
	}
	var chain []deadletter.FailureEvent
	if err := json.Unmarshal(chainJSON, &chain); err != nil {
		return deadletter.Entry{}, errs.Wrap(errs.CodeValidation, "unmarshal dead-letter failure chain failed", err)
	}

	return deadletter.Entry{
		Job:            job,
		Queue:          queueName,
		FailureChain:   chain,
		FirstAttemptAt: firstAt,
		LastAttemptAt:  lastAt,
	}, nil
}

// QueueRequeuer adapts a queue.Producer into deadletter.Requeuer.
type QueueRequeuer struct {
	producer *queue.Producer
}

// NewQueueRequeuer constructs a QueueRequeuer over producer.
func NewQueueRequeuer(producer *queue.Producer) *QueueRequeuer {
	return &QueueRequeuer{producer: producer}
}

// Requeue re-enqueues job's event on its origin queue as a new job at the
// default priority 0, deduplicated on its event hash like any other
// enqueue. It does not go to the head of the queue: it is ordered behind
// jobs already pending at priority 0.
func (r *QueueRequeuer) Requeue(ctx context.Context, queueName string, job domain.QueueJob) error {
	_, err := r.producer.Enqueue(ctx, queueName, job.Event, queue.EnqueueOptions{MaxAttempts: job.MaxAttempts})
	return err
}
