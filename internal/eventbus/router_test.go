package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"auditcore/internal/eventbus"
)

type recordingHandler struct {
	records []*kgo.Record
}

func (h *recordingHandler) Handle(ctx context.Context, record *kgo.Record) error {
	h.records = append(h.records, record)
	return nil
}

func TestRouter_DispatchesToRegisteredTopic(t *testing.T) {
	handler := &recordingHandler{}
	r := eventbus.NewRouter(nil, nil)
	r.Register("persisted-events", handler)

	err := r.Handle(context.Background(), &kgo.Record{Topic: "persisted-events", Value: []byte("x")})
	require.NoError(t, err)
	assert.Len(t, handler.records, 1)
}

func TestRouter_FallsBackWhenNoHandlerRegistered(t *testing.T) {
	fallback := &recordingHandler{}
	r := eventbus.NewRouter(nil, fallback)

	err := r.Handle(context.Background(), &kgo.Record{Topic: "unknown-topic"})
	require.NoError(t, err)
	assert.Len(t, fallback.records, 1)
}

func TestRouter_SkipsSilentlyWithNoFallback(t *testing.T) {
	r := eventbus.NewRouter(nil, nil)

	err := r.Handle(context.Background(), &kgo.Record{Topic: "unknown-topic"})
	assert.NoError(t, err)
}
