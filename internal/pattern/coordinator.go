package pattern

import (
	"context"
	"log/slog"
	"time"

	"auditcore/pkg/domain"
)

// AlertSink receives candidate alerts produced by detectors. The Alerting
// Service implements this (spec §4.11 -> §4.12 hand-off).
type AlertSink interface {
	Submit(ctx context.Context, alert domain.Alert) error
}

// Coordinator implements storage.EventPublisher: it is the consumer side of
// the Storage Writer's event-bus hook, fanning each persisted event out to
// every registered Detector and forwarding any resulting candidate alerts
// to the Alerting Service.
type Coordinator struct {
	detectors []Detector
	sink      AlertSink
	log       *slog.Logger
	now       func() time.Time
}

// NewCoordinator wires detectors to sink. The slice is used as given; a nil
// or empty slice is not replaced by DefaultDetectors(), so no detector runs.
func NewCoordinator(detectors []Detector, sink AlertSink, log *slog.Logger) *Coordinator {
	return &Coordinator{detectors: detectors, sink: sink, log: log, now: time.Now}
}

// Publish evaluates e against every detector, excluding internally-generated
// events by default (spec §9 cyclic-collaborator fix) so the Alerting
// Service's own persistence actions never re-trigger detectors.
func (c *Coordinator) Publish(ctx context.Context, e domain.AuditEvent) error {
	if e.IsInternallyGenerated() {
		return nil
	}

	now := c.now()
	for _, d := range c.detectors {
		alert := d.Evaluate(e, now)
		if alert == nil {
			continue
		}
		if err := c.sink.Submit(ctx, *alert); err != nil {
			if c.log != nil {
				c.log.Error("alert submit failed", "detector", d.ID(), "err", err)
			}
			continue
		}
	}
	return nil
}
