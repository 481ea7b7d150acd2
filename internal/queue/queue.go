// Package queue implements the Queue Producer and its Redis-backed durable
// queue (spec §4.5, §6 Queue Layout). Per queue name Q the backend uses:
// a pending sorted set `Q:pending` scored by priority (lower pops first,
// arrival order preserved within a priority class), a delayed sorted set
// `Q:delayed` scored by availableAt epoch milliseconds, an active hash per
// job `Q:active:{jobId}`, a dead-letter list `Q:dlq`, a dedup index hash
// `Q:dedup`, and a breaker mirror hash `Q:breaker`.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// Backend is the Redis-backed durable queue described in spec §6. It holds
// no breaker state itself; breaker accounting is per-process in-memory
// (internal/circuit.Breaker), with SyncBreakerState mirroring transitions
// here purely for cross-process observability (spec §5's "implementations
// must pick one and document it").
type Backend struct {
	rdb *goredis.Client
}

// NewBackend wraps an existing go-redis client.
func NewBackend(rdb *goredis.Client) *Backend {
	return &Backend{rdb: rdb}
}

func pendingKey(queue string) string { return queue + ":pending" }
func delayedKey(queue string) string { return queue + ":delayed" }
func activeKey(queue, jobID string) string { return queue + ":active:" + jobID }
func dlqKey(queue string) string     { return queue + ":dlq" }
func dedupKey(queue string) string   { return queue + ":dedup" }
func breakerKey(queue string) string { return queue + ":breaker" }
func jobsKey(queue string) string    { return queue + ":jobs" }

// EnqueueOptions mirrors the Producer API options relevant to enqueueing
// (spec §6): priority (lower = sooner), delayMs, and an explicit dedup key
// that otherwise defaults to the sealed event's hash.
type EnqueueOptions struct {
	Priority         int
	DelayMs          int64
	DeduplicationKey string
	MaxAttempts      int
}

// Producer appends sealed events to a named durable queue.
type Producer struct {
	backend *Backend
}

// NewProducer constructs a Producer over backend.
func NewProducer(backend *Backend) *Producer {
	return &Producer{backend: backend}
}

// Enqueue implements spec §4.5: a job sharing a pending/active dedup key is
// dropped in favor of returning the existing jobId.
func (p *Producer) Enqueue(ctx context.Context, queueName string, event domain.AuditEvent, opts EnqueueOptions) (domain.JobID, error) {
	key := opts.DeduplicationKey
	if key == "" {
		key = event.Hash
	}
	if key == "" {
		return domain.JobID{}, errs.New(errs.CodeValidation, "deduplication key requires either an explicit key or a sealed event hash")
	}

	if existing, ok, err := p.backend.lookupDedup(ctx, queueName, key); err != nil {
		return domain.JobID{}, err
	} else if ok {
		return existing, nil
	}

	now := time.Now()
	jobID := domain.NewJobID()
	job := domain.QueueJob{
		ID:          jobID,
		Event:       event,
		State:       domain.JobQueued,
		Priority:    opts.Priority,
		MaxAttempts: opts.MaxAttempts,
		EnqueuedAt:  now,
		NextAttempt: now.Add(time.Duration(opts.DelayMs) * time.Millisecond),
	}

	if err := p.backend.insert(ctx, queueName, job, key, opts.DelayMs); err != nil {
		return domain.JobID{}, err
	}
	return jobID, nil
}

func (b *Backend) lookupDedup(ctx context.Context, queue, key string) (domain.JobID, bool, error) {
	val, err := b.rdb.HGet(ctx, dedupKey(queue), key).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.JobID{}, false, nil
	}
	if err != nil {
		return domain.JobID{}, false, errs.Wrap(errs.CodeTransient, "dedup lookup failed", err)
	}
	jobID, err := domain.ParseJobID(val)
	if err != nil {
		return domain.JobID{}, false, errs.Wrap(errs.CodeIntegrity, "corrupt dedup index entry", err)
	}
	return jobID, true, nil
}

func (b *Backend) insert(ctx context.Context, queue string, job domain.QueueJob, dedup string, delayMs int64) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "marshal queue job failed", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, jobsKey(queue), job.ID.String(), payload)
	pipe.HSet(ctx, dedupKey(queue), dedup, job.ID.String())
	if delayMs > 0 {
		score := float64(time.Now().Add(time.Duration(delayMs) * time.Millisecond).UnixMilli())
		pipe.ZAdd(ctx, delayedKey(queue), goredis.Z{Score: score, Member: job.ID.String()})
	} else {
		b.pushByPriority(ctx, pipe, queue, job)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.CodeTransient, "enqueue transaction failed", err)
	}
	return nil
}

// priorityBand spaces priority classes far enough apart in the pending
// ZSET's score that arrival order (the enqueuedAt component) never crosses
// a priority boundary: consecutive millisecond timestamps fit comfortably
// under this band for any priority difference of 1.
const priorityBand = 1e13

// priorityScore orders the pending ZSET by priority first (lower = sooner,
// per spec §6), then by arrival time within the same priority so FIFO
// order holds for jobs sharing a priority class.
func priorityScore(priority int, enqueuedAt time.Time) float64 {
	return float64(priority)*priorityBand + float64(enqueuedAt.UnixMilli())
}

// pushByPriority implements the priority input (spec §6 Producer API):
// the job is added to the pending ZSET scored by priorityScore, so Dequeue
// (which pops the minimum score) always serves the lowest-priority-value
// job first, falling back to arrival order within a priority class.
func (b *Backend) pushByPriority(ctx context.Context, pipe goredis.Pipeliner, queue string, job domain.QueueJob) {
	pipe.ZAdd(ctx, pendingKey(queue), goredis.Z{
		Score:  priorityScore(job.Priority, job.EnqueuedAt),
		Member: job.ID.String(),
	})
}

// PromoteDelayed moves delayed jobs whose availableAt has elapsed onto the
// pending set, preserving each job's original priority. Callers run this
// on a ticker alongside worker polling.
func (b *Backend) PromoteDelayed(ctx context.Context, queue string) error {
	nowMs := float64(time.Now().UnixMilli())
	ids, err := b.rdb.ZRangeByScore(ctx, delayedKey(queue), &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", nowMs),
	}).Result()
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "scan delayed set failed", err)
	}
	if len(ids) == 0 {
		return nil
	}

	payloads, err := b.rdb.HMGet(ctx, jobsKey(queue), ids...).Result()
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "load delayed job payloads failed", err)
	}

	pipe := b.rdb.TxPipeline()
	for i, id := range ids {
		pipe.ZRem(ctx, delayedKey(queue), id)

		raw, ok := payloads[i].(string)
		if !ok {
			// Payload hash entry missing or expired; fall back to now so
			// the job still reaches the pending set instead of being lost.
			pipe.ZAdd(ctx, pendingKey(queue), goredis.Z{Score: priorityScore(0, time.Now()), Member: id})
			continue
		}
		var job domain.QueueJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			pipe.ZAdd(ctx, pendingKey(queue), goredis.Z{Score: priorityScore(0, time.Now()), Member: id})
			continue
		}
		pipe.ZAdd(ctx, pendingKey(queue), goredis.Z{Score: priorityScore(job.Priority, job.EnqueuedAt), Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.CodeTransient, "promote delayed jobs failed", err)
	}
	return nil
}

// Dequeue pops the lowest-priority-value pending job id (ties broken by
// arrival order, per priorityScore), loads its payload, and leases it into
// the active hash until leaseUntil.
func (b *Backend) Dequeue(ctx context.Context, queue string, leaseDuration time.Duration) (*domain.QueueJob, error) {
	popped, err := b.rdb.ZPopMin(ctx, pendingKey(queue), 1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "dequeue failed", err)
	}
	if len(popped) == 0 {
		return nil, nil
	}
	id, ok := popped[0].Member.(string)
	if !ok {
		return nil, errs.New(errs.CodeIntegrity, "corrupt pending set member")
	}

	raw, err := b.rdb.HGet(ctx, jobsKey(queue), id).Result()
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "load job payload failed", err)
	}
	var job domain.QueueJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, errs.Wrap(errs.CodeSerializaton, "corrupt job payload", err)
	}

	job.State = domain.JobActive
	job.Attempts++
	leaseUntil := time.Now().Add(leaseDuration)

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, errs.Wrap(errs.CodeSerializaton, "marshal leased job failed", err)
	}
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, activeKey(queue, id), map[string]any{
		"payload":    payload,
		"leaseUntil": leaseUntil.UnixMilli(),
		"attempts":   job.Attempts,
	})
	pipe.HSet(ctx, jobsKey(queue), id, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "lease job failed", err)
	}
	return &job, nil
}

// Ack marks a job completed: removes it from the active hash, the job
// store, and its dedup entry.
func (b *Backend) Ack(ctx context.Context, queue string, job domain.QueueJob, dedup string) error {
	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, activeKey(queue, job.ID.String()))
	pipe.HDel(ctx, jobsKey(queue), job.ID.String())
	pipe.HDel(ctx, dedupKey(queue), dedup)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "ack job failed", err)
	}
	return nil
}

// Retry requeues job after delay, clearing its active lease.
func (b *Backend) Retry(ctx context.Context, queue string, job domain.QueueJob, delay time.Duration) error {
	job.State = domain.JobRetrying
	payload, err := json.Marshal(job)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "marshal retry job failed", err)
	}

	score := float64(time.Now().Add(delay).UnixMilli())
	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, activeKey(queue, job.ID.String()))
	pipe.HSet(ctx, jobsKey(queue), job.ID.String(), payload)
	pipe.ZAdd(ctx, delayedKey(queue), goredis.Z{Score: score, Member: job.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.CodeTransient, "requeue job failed", err)
	}
	return nil
}

// MoveToDeadLetter transfers job to the DLQ list, removing its active
// lease and dedup entry so no further automatic processing occurs.
func (b *Backend) MoveToDeadLetter(ctx context.Context, queue string, job domain.QueueJob, dedup string) error {
	job.State = domain.JobDeadLettered
	payload, err := json.Marshal(job)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "marshal dead-lettered job failed", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, activeKey(queue, job.ID.String()))
	pipe.HDel(ctx, dedupKey(queue), dedup)
	pipe.HSet(ctx, jobsKey(queue), job.ID.String(), payload)
	pipe.RPush(ctx, dlqKey(queue), job.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.CodeTransient, "move to dead letter failed", err)
	}
	return nil
}

// SyncBreakerState mirrors an in-memory breaker's transition into
// `Q:breaker` for cross-process observability only (see package doc).
func (b *Backend) SyncBreakerState(ctx context.Context, queue, state string, openedAt time.Time, samples int) error {
	err := b.rdb.HSet(ctx, breakerKey(queue), map[string]any{
		"state":    state,
		"openedAt": openedAt.UnixMilli(),
		"samples":  samples,
	}).Err()
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "sync breaker state failed", err)
	}
	return nil
}

// PendingDepth reports the current pending-set size, feeding the Metrics
// Collector's queue_depth gauge.
func (b *Backend) PendingDepth(ctx context.Context, queue string) (int64, error) {
	n, err := b.rdb.ZCard(ctx, pendingKey(queue)).Result()
	if err != nil {
		return 0, errs.Wrap(errs.CodeTransient, "pending depth query failed", err)
	}
	return n, nil
}
