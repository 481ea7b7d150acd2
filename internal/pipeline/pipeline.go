// Package pipeline wires the Validator, Preset Resolver, Sealer, and Queue
// Producer behind the single Producer API operation named in spec §6:
// Log(event, options) -> (jobId, error).
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"auditcore/internal/preset"
	"auditcore/internal/queue"
	"auditcore/internal/seal"
	"auditcore/internal/tracer"
	"auditcore/internal/validate"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// Options mirrors the Producer API inputs (spec §6).
type Options struct {
	Priority           int
	DelayMs            int64
	GenerateHash       *bool // nil defaults to true
	GenerateSignature  *bool // nil defaults to true
	SigningAlgorithm   domain.SigningAlgorithm
	PresetName         string
	Compliance         []validate.Profile
	GuaranteedDelivery bool
	MaxAttempts        int
}

func (o Options) generateHash() bool {
	return o.GenerateHash == nil || *o.GenerateHash
}

func (o Options) generateSignature() bool {
	return o.GenerateSignature == nil || *o.GenerateSignature
}

// EventCounters feeds the Metrics Collector's events_total/events_failed
// counters without this package importing prometheus directly.
type EventCounters interface {
	IncEventsTotal()
	IncEventsFailed(code string)
	ObserveProcessingLatency(ms float64)
}

// Enqueuer is the Queue Producer capability the pipeline depends on.
// queue.Producer satisfies this; tests substitute a fake.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, event domain.AuditEvent, opts queue.EnqueueOptions) (domain.JobID, error)
}

// Pipeline is the core orchestration behind Log.
type Pipeline struct {
	presets   *preset.Resolver // optional
	validator *validate.Validator
	sealer    *seal.Sealer
	producer  Enqueuer
	queueName string
	tracer    *tracer.Tracer // optional
	counters  EventCounters  // optional
	log       *slog.Logger

	mu       sync.Mutex
	buffered []domain.QueueJob
}

// New constructs a Pipeline.
func New(presets *preset.Resolver, validator *validate.Validator, sealer *seal.Sealer, producer Enqueuer, queueName string, tr *tracer.Tracer, counters EventCounters, log *slog.Logger) *Pipeline {
	return &Pipeline{
		presets:   presets,
		validator: validator,
		sealer:    sealer,
		producer:  producer,
		queueName: queueName,
		tracer:    tr,
		counters:  counters,
		log:       log,
	}
}

// Log implements the Producer API's single logical operation (spec §6).
func (p *Pipeline) Log(ctx context.Context, event domain.AuditEvent, opts Options) (domain.JobID, error) {
	start := time.Now()
	var ingestSpan *domain.TraceSpan
	if p.tracer != nil {
		s := p.tracer.StartSpan("ingest", nil, start)
		ingestSpan = &s
	}

	jobID, err := p.process(ctx, event, opts, ingestSpan)

	if p.counters != nil {
		if err != nil {
			p.counters.IncEventsFailed(string(errs.CodeOf(err)))
		} else {
			p.counters.IncEventsTotal()
		}
		p.counters.ObserveProcessingLatency(float64(time.Since(start).Milliseconds()))
	}
	return jobID, err
}

func (p *Pipeline) process(ctx context.Context, event domain.AuditEvent, opts Options, ingestSpan *domain.TraceSpan) (domain.JobID, error) {
	event = p.applyPreset(ctx, event, opts, ingestSpan)
	event = enrichUserAgent(event)

	event, err := p.validate(event, opts, ingestSpan)
	if err != nil {
		return domain.JobID{}, err
	}

	event, err = p.seal(ctx, event, opts, ingestSpan)
	if err != nil {
		return domain.JobID{}, err
	}

	return p.enqueue(ctx, event, opts, ingestSpan)
}

func (p *Pipeline) applyPreset(ctx context.Context, event domain.AuditEvent, opts Options, parent *domain.TraceSpan) domain.AuditEvent {
	if p.presets == nil || opts.PresetName == "" {
		return event
	}
	now := time.Now()
	var span *domain.TraceSpan
	if p.tracer != nil {
		s := p.tracer.StartSpan("preset", parent, now)
		span = &s
	}

	tmpl, err := p.presets.Resolve(ctx, opts.PresetName, event.OrganizationID)
	status := domain.SpanOK
	if err != nil || tmpl == nil {
		status = domain.SpanError
		if span != nil {
			p.tracer.Finish(*span, time.Now(), status)
		}
		return event
	}

	if event.Action == "" {
		event.Action = tmpl.Action
	}
	if event.DataClassification == "" {
		event.DataClassification = tmpl.DataClassification
	}
	if event.Details == nil && len(tmpl.Defaults) > 0 {
		event.Details = map[string]any{}
	}
	for k, v := range tmpl.Defaults {
		if _, exists := event.Details[k]; !exists {
			event.Details[k] = v
		}
	}

	if span != nil {
		p.tracer.Finish(*span, time.Now(), status)
	}
	return event
}

func (p *Pipeline) validate(event domain.AuditEvent, opts Options, parent *domain.TraceSpan) (domain.AuditEvent, error) {
	now := time.Now()
	var span *domain.TraceSpan
	if p.tracer != nil {
		s := p.tracer.StartSpan("validate", parent, now)
		span = &s
	}

	sanitized, err := p.validator.Validate(event, validate.Options{Profiles: opts.Compliance})

	if span != nil {
		status := domain.SpanOK
		if err != nil {
			status = domain.SpanError
		}
		p.tracer.Finish(*span, time.Now(), status)
	}
	return sanitized, err
}

func (p *Pipeline) seal(ctx context.Context, event domain.AuditEvent, opts Options, parent *domain.TraceSpan) (domain.AuditEvent, error) {
	now := time.Now()
	var span *domain.TraceSpan
	if p.tracer != nil {
		s := p.tracer.StartSpan("seal", parent, now)
		span = &s
	}

	var err error
	if opts.generateHash() {
		event = p.sealer.Hash(event)
	}
	if opts.generateSignature() {
		event, err = p.sealer.Sign(ctx, event, opts.SigningAlgorithm)
	}

	if span != nil {
		status := domain.SpanOK
		if err != nil {
			status = domain.SpanError
		}
		p.tracer.Finish(*span, time.Now(), status)
	}
	return event, err
}

func (p *Pipeline) enqueue(ctx context.Context, event domain.AuditEvent, opts Options, parent *domain.TraceSpan) (domain.JobID, error) {
	now := time.Now()
	var span *domain.TraceSpan
	if p.tracer != nil {
		s := p.tracer.StartSpan("enqueue", parent, now)
		span = &s
	}

	jobID, err := p.producer.Enqueue(ctx, p.queueName, event, queue.EnqueueOptions{
		Priority:    opts.Priority,
		DelayMs:     opts.DelayMs,
		MaxAttempts: opts.MaxAttempts,
	})

	status := domain.SpanOK
	if err != nil {
		status = domain.SpanError
		if !opts.GuaranteedDelivery && errs.Retryable(errs.CodeOf(err)) {
			jobID = p.bufferLocally(event, opts)
			err = nil
			status = domain.SpanOK
		}
	}
	if span != nil {
		p.tracer.Finish(*span, time.Now(), status)
	}
	return jobID, err
}

// bufferLocally implements the guaranteedDelivery=false path (spec §6):
// "when true, enqueue fails loudly instead of buffering" implies the
// inverse holds when false — a transient enqueue failure is absorbed into
// an in-memory overflow buffer rather than surfaced to the producer.
func (p *Pipeline) bufferLocally(event domain.AuditEvent, opts Options) domain.JobID {
	job := domain.QueueJob{
		ID:          domain.NewJobID(),
		Event:       event,
		State:       domain.JobQueued,
		MaxAttempts: opts.MaxAttempts,
		EnqueuedAt:  time.Now(),
	}
	p.mu.Lock()
	p.buffered = append(p.buffered, job)
	p.mu.Unlock()
	if p.log != nil {
		p.log.Warn("event buffered locally after transient enqueue failure", "jobId", job.ID.String())
	}
	return job.ID
}

// DrainBuffered attempts to re-enqueue every locally buffered job, e.g. once
// the queue store recovers. Jobs that fail again remain buffered.
func (p *Pipeline) DrainBuffered(ctx context.Context) (int, error) {
	p.mu.Lock()
	pending := p.buffered
	p.buffered = nil
	p.mu.Unlock()

	var remaining []domain.QueueJob
	flushed := 0
	for _, job := range pending {
		if _, err := p.producer.Enqueue(ctx, p.queueName, job.Event, queue.EnqueueOptions{MaxAttempts: job.MaxAttempts}); err != nil {
			remaining = append(remaining, job)
			continue
		}
		flushed++
	}

	p.mu.Lock()
	p.buffered = append(p.buffered, remaining...)
	p.mu.Unlock()
	return flushed, nil
}
