// Package processor implements the Reliable Processor (spec §4.6): a
// fixed-size worker pool per queue that leases jobs, gates execution
// through a circuit breaker, retries with exponential backoff and jitter,
// and routes exhausted jobs to the Dead-Letter Handler.
package processor

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/semaphore"

	"auditcore/internal/circuit"
	"auditcore/internal/queue"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// Handler executes the business action for one job (the Storage Writer by
// default, per spec §4.6 step 3).
type Handler func(ctx context.Context, event domain.AuditEvent) error

// DeadLetterSink receives jobs whose retry budget is exhausted.
type DeadLetterSink interface {
	Send(ctx context.Context, queue string, job domain.QueueJob, err error) error
}

// RetryPolicy is the exponential-backoff-with-jitter schedule from spec §4.6
// step 5: delay = min(maxDelay, initial*multiplier^(attempts-1)) ± jitter.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       time.Duration
}

// DefaultRetryPolicy matches scenario S3 (spec §8).
var DefaultRetryPolicy = RetryPolicy{
	InitialDelay: 100 * time.Millisecond,
	Multiplier:   2,
	MaxDelay:     5 * time.Second,
	Jitter:       20 * time.Millisecond,
}

// Delay computes the backoff for the given 1-indexed attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}
	jitter := float64(0)
	if p.Jitter > 0 {
		jitter = (rand.Float64()*2 - 1) * float64(p.Jitter)
	}
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// Config configures a Pool.
type Config struct {
	QueueName     string
	Concurrency   int
	LeaseDuration time.Duration
	GraceDuration time.Duration
	Retry         RetryPolicy
	MaxAttempts   int
	PollInterval  time.Duration
}

const (
	defaultLease   = 30 * time.Second
	defaultGrace   = 15 * time.Second
	defaultPoll    = 50 * time.Millisecond
	defaultMaxTrys = 5
)

// Pool is the worker pool for a single queue.
type Pool struct {
	cfg     Config
	backend *queue.Backend
	breaker *circuit.Breaker
	handler Handler
	dlq     DeadLetterSink
	log     *slog.Logger

	sem *semaphore.Weighted
}

// New constructs a Pool. Zero-value Config fields fall back to spec
// defaults (leaseMs=30000, graceMs=15000).
func New(cfg Config, backend *queue.Backend, breaker *circuit.Breaker, handler Handler, dlq DeadLetterSink, log *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLease
	}
	if cfg.GraceDuration <= 0 {
		cfg.GraceDuration = defaultGrace
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPoll
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxTrys
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy
	}
	return &Pool{
		cfg:     cfg,
		backend: backend,
		breaker: breaker,
		handler: handler,
		dlq:     dlq,
		log:     log,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// Run drives the pool until ctx is cancelled. On cancellation, in-flight
// jobs get up to cfg.GraceDuration to finish before Run returns; jobs still
// running past that are abandoned to lease expiry (spec §4.6 cancellation).
func (pl *Pool) Run(ctx context.Context) error {
	ticker := time.NewTicker(pl.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return pl.drain()
		case <-ticker.C:
			_ = pl.backend.PromoteDelayed(ctx, pl.cfg.QueueName)
			pl.dispatchAvailable(ctx)
		}
	}
}

func (pl *Pool) drain() error {
	done := make(chan struct{})
	go func() {
		_ = pl.sem.Acquire(context.Background(), int64(pl.cfg.Concurrency))
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(pl.cfg.GraceDuration):
		return nil
	}
}

func (pl *Pool) dispatchAvailable(ctx context.Context) {
	for {
		if !pl.sem.TryAcquire(1) {
			return
		}
		job, err := pl.backend.Dequeue(ctx, pl.cfg.QueueName, pl.cfg.LeaseDuration)
		if err != nil {
			pl.log.Error("dequeue failed", "queue", pl.cfg.QueueName, "error", err)
			pl.sem.Release(1)
			return
		}
		if job == nil {
			pl.sem.Release(1)
			return
		}
		go func(j domain.QueueJob) {
			defer pl.sem.Release(1)
			pl.process(ctx, j)
		}(*job)
	}
}

func (pl *Pool) process(ctx context.Context, job domain.QueueJob) {
	dedup := job.Event.Hash

	if !pl.breaker.Allow() {
		_ = pl.backend.Retry(ctx, pl.cfg.QueueName, job, defaultOpenCooldown)
		return
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	jobCtx, cancel = context.WithTimeout(ctx, pl.cfg.LeaseDuration)
	defer cancel()

	err := pl.handler(jobCtx, job.Event)
	if err == nil {
		pl.breaker.RecordSuccess()
		if ackErr := pl.backend.Ack(ctx, pl.cfg.QueueName, job, dedup); ackErr != nil {
			pl.log.Error("ack failed", "job", job.ID.String(), "error", ackErr)
		}
		return
	}

	pl.breaker.RecordFailure()

	code := errs.CodeOf(err)
	maxAttempts := errs.MaxAttemptsFor(code, pl.cfg.MaxAttempts)

	if errs.Retryable(code) && job.Attempts < maxAttempts {
		delay := pl.cfg.Retry.Delay(job.Attempts)
		job.LastError = err.Error()
		if retryErr := pl.backend.Retry(ctx, pl.cfg.QueueName, job, delay); retryErr != nil {
			pl.log.Error("retry enqueue failed", "job", job.ID.String(), "error", retryErr)
		}
		return
	}

	job.LastError = err.Error()
	if dlErr := pl.dlq.Send(ctx, pl.cfg.QueueName, job, err); dlErr != nil {
		pl.log.Error("dead-letter send failed", "job", job.ID.String(), "error", dlErr)
	}
	if mErr := pl.backend.MoveToDeadLetter(ctx, pl.cfg.QueueName, job, dedup); mErr != nil {
		pl.log.Error("move to dead letter failed", "job", job.ID.String(), "error", mErr)
	}
}

const defaultOpenCooldown = 30 * time.Second
