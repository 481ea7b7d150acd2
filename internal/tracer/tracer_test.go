package tracer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/tracer"
	"auditcore/pkg/domain"
)

type captureExporter struct {
	mu    sync.Mutex
	calls [][]domain.TraceSpan
}

func (c *captureExporter) Export(ctx context.Context, spans []domain.TraceSpan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, spans)
	return nil
}

func (c *captureExporter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, batch := range c.calls {
		n += len(batch)
	}
	return n
}

func TestTracer_FlushesOnBatchSize(t *testing.T) {
	exp := &captureExporter{}
	tr := tracer.New(exp, nil, tracer.WithBatchSize(2), tracer.WithBatchTimeout(time.Hour))

	now := time.Now()
	for i := 0; i < 2; i++ {
		span := tr.StartSpan("ingest", nil, now)
		tr.Finish(span, now.Add(time.Millisecond), domain.SpanOK)
	}

	require.Eventually(t, func() bool { return exp.total() == 2 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))
}

func TestTracer_ChildSpanSharesTraceID(t *testing.T) {
	exp := &captureExporter{}
	tr := tracer.New(exp, nil, tracer.WithBatchTimeout(time.Hour))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tr.Shutdown(ctx)
	}()

	now := time.Now()
	parent := tr.StartSpan("ingest", nil, now)
	child := tr.StartSpan("validate", &parent, now)

	assert.Equal(t, parent.TraceIDHex(), child.TraceIDHex())
	assert.True(t, child.HasParent())
	assert.Equal(t, parent.SpanIDHex(), child.ParentSpanID.String())
}

func TestTracer_FlushesOnTimeout(t *testing.T) {
	exp := &captureExporter{}
	tr := tracer.New(exp, nil, tracer.WithBatchSize(1000), tracer.WithBatchTimeout(20*time.Millisecond))

	now := time.Now()
	span := tr.StartSpan("persist", nil, now)
	tr.Finish(span, now, domain.SpanOK)

	require.Eventually(t, func() bool { return exp.total() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))
}
