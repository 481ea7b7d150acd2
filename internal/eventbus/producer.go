// Package eventbus carries persisted events from the Storage Writer to the
// Pattern Detector over Kafka (spec §2 control flow), modeled on the
// teacher's topic-router consumer pattern (pkg/platform/audit/consumer).
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

const defaultTopic = "audit.events.persisted"

// Producer publishes persisted events onto the event bus. It implements
// storage.EventPublisher without importing that package, keeping the
// dependency direction storage -> eventbus rather than the reverse.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer over an already-configured client.
func NewProducer(client *kgo.Client, topic string) *Producer {
	if topic == "" {
		topic = defaultTopic
	}
	return &Producer{client: client, topic: topic}
}

// Publish serializes e and produces it synchronously, keyed by organization
// so each tenant's events land on one partition and keep their order there.
func (p *Producer) Publish(ctx context.Context, e domain.AuditEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errs.Wrap(errs.CodeValidation, "marshal event for event bus failed", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.OrganizationID),
		Value: body,
	}

	result := p.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return errs.Wrap(errs.CodeTransient, "produce event to event bus failed", err)
	}
	return nil
}

// Close releases the underlying client's buffered records and connections.
func (p *Producer) Close() { p.client.Close() }
