package eventbus_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"auditcore/internal/eventbus"
	"auditcore/pkg/domain"
)

type capturingPublisher struct {
	events []domain.AuditEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, e domain.AuditEvent) error {
	p.events = append(p.events, e)
	return nil
}

func TestPatternHandler_DecodesAndForwards(t *testing.T) {
	publisher := &capturingPublisher{}
	handler := eventbus.NewPatternHandler(publisher)

	e := domain.AuditEvent{Action: "auth.login.success", Status: domain.StatusSuccess}
	body, err := json.Marshal(e)
	require.NoError(t, err)

	err = handler.Handle(context.Background(), &kgo.Record{Topic: "persisted-events", Value: body})
	require.NoError(t, err)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "auth.login.success", publisher.events[0].Action)
}

func TestPatternHandler_InvalidJSONFails(t *testing.T) {
	publisher := &capturingPublisher{}
	handler := eventbus.NewPatternHandler(publisher)

	err := handler.Handle(context.Background(), &kgo.Record{Topic: "persisted-events", Value: []byte("not json")})
	assert.Error(t, err)
}
