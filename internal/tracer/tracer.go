// Package tracer implements the Tracer (spec §4.13): span creation around
// pipeline stages, batched export, and pluggable wire-format exporters.
package tracer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"auditcore/pkg/domain"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 5000 * time.Millisecond
)

// Exporter ships a batch of finished spans to a backend.
type Exporter interface {
	Export(ctx context.Context, spans []domain.TraceSpan) error
}

// Tracer creates spans around pipeline stages and batches finished spans for
// export (spec §4.13: batchSize=100, batchTimeout=5000ms).
type Tracer struct {
	exporter     Exporter
	batchSize    int
	batchTimeout time.Duration
	log          *slog.Logger

	mu      sync.Mutex
	pending []domain.TraceSpan

	flushC chan struct{}
	stopC  chan struct{}
	doneC  chan struct{}
}

// Option configures a Tracer.
type Option func(*Tracer)

func WithBatchSize(n int) Option { return func(t *Tracer) { t.batchSize = n } }

func WithBatchTimeout(d time.Duration) Option {
	return func(t *Tracer) { t.batchTimeout = d }
}

// New constructs a Tracer and starts its background batch-flush loop.
func New(exporter Exporter, log *slog.Logger, opts ...Option) *Tracer {
	t := &Tracer{
		exporter:     exporter,
		batchSize:    defaultBatchSize,
		batchTimeout: defaultBatchTimeout,
		log:          log,
		flushC:       make(chan struct{}, 1),
		stopC:        make(chan struct{}),
		doneC:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.loop()
	return t
}

// newTraceID and newSpanID fill otel's ID types with bytes from crypto/rand
// (see fillRandom); the otel types serve purely as typed hex containers
// (see domain.TraceSpan's doc comment).
func newTraceID() trace.TraceID {
	var id trace.TraceID
	fillRandom(id[:])
	return id
}

func newSpanID() trace.SpanID {
	var id trace.SpanID
	fillRandom(id[:])
	return id
}

// StartSpan begins a new span for one pipeline stage (ingest, validate,
// seal, enqueue, worker.execute, persist). If parent is non-nil the new
// span is nested under it.
func (t *Tracer) StartSpan(name string, parent *domain.TraceSpan, now time.Time) domain.TraceSpan {
	span := domain.TraceSpan{
		TraceID:   newTraceID(),
		SpanID:    newSpanID(),
		Name:      name,
		StartedAt: now,
	}
	if parent != nil {
		span.TraceID = parent.TraceID
		span.ParentSpanID = parent.SpanID
	}
	return span
}

// Finish completes a span and enqueues it for batched export.
func (t *Tracer) Finish(span domain.TraceSpan, at time.Time, status domain.SpanStatus) {
	finished := span.Finish(at, status)

	t.mu.Lock()
	t.pending = append(t.pending, finished)
	full := len(t.pending) >= t.batchSize
	t.mu.Unlock()

	if full {
		select {
		case t.flushC <- struct{}{}:
		default:
		}
	}
}

func (t *Tracer) loop() {
	defer close(t.doneC)
	ticker := time.NewTicker(t.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.flush()
		case <-t.flushC:
			t.flush()
		case <-t.stopC:
			t.flush()
			return
		}
	}
}

func (t *Tracer) flush() {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.exporter.Export(ctx, batch); err != nil && t.log != nil {
		t.log.Error("span export failed", "count", len(batch), "err", err)
	}
}

// Shutdown stops the batch loop after flushing any pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	close(t.stopC)
	select {
	case <-t.doneC:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
