package pattern_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"auditcore/internal/pattern"
	"auditcore/pkg/domain"
)

type fakeSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (f *fakeSink) Submit(ctx context.Context, a domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func TestCoordinator_SkipsInternallyGeneratedEvents(t *testing.T) {
	sink := &fakeSink{}
	c := pattern.NewCoordinator(pattern.DefaultDetectors(), sink, nil)

	e := domain.AuditEvent{
		Action:             "data.export",
		Source:             "audit-system",
		DataClassification: domain.ClassificationPHI,
		Timestamp:          time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, c.Publish(context.Background(), e))
	assert.Equal(t, 0, sink.count())
}

func TestCoordinator_ForwardsCandidateAlerts(t *testing.T) {
	sink := &fakeSink{}
	c := pattern.NewCoordinator(pattern.DefaultDetectors(), sink, nil)

	e := domain.AuditEvent{
		DataClassification: domain.ClassificationPHI,
		Timestamp:          time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, c.Publish(context.Background(), e))
	assert.Equal(t, 1, sink.count())
}
