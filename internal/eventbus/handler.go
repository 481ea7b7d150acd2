package eventbus

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// EventPublisher is the Pattern Detector's consuming capability.
// pattern.Coordinator satisfies this.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.AuditEvent) error
}

// PatternHandler decodes persisted-events records and forwards them to the
// Pattern Detector, bridging the Kafka transport and storage.EventPublisher.
type PatternHandler struct {
	publisher EventPublisher
}

// NewPatternHandler constructs a PatternHandler.
func NewPatternHandler(publisher EventPublisher) *PatternHandler {
	return &PatternHandler{publisher: publisher}
}

// Handle implements TopicHandler.
func (h *PatternHandler) Handle(ctx context.Context, record *kgo.Record) error {
	var e domain.AuditEvent
	if err := json.Unmarshal(record.Value, &e); err != nil {
		return errs.Wrap(errs.CodeValidation, "decode event bus record failed", err)
	}
	return h.publisher.Publish(ctx, e)
}
