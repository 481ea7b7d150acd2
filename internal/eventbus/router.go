package eventbus

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicHandler handles records consumed from a specific topic, grounded on
// the teacher's pkg/platform/audit/consumer.TopicHandler dispatch pattern.
type TopicHandler interface {
	Handle(ctx context.Context, record *kgo.Record) error
}

// Router dispatches a consumed record to the handler registered for its
// topic, falling back to a catch-all handler (or a skip-and-log) otherwise.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
	log      *slog.Logger
}

// NewRouter constructs a Router with an optional fallback handler.
func NewRouter(log *slog.Logger, fallback TopicHandler) *Router {
	return &Router{handlers: make(map[string]TopicHandler), fallback: fallback, log: log}
}

// Register adds a handler for a specific topic.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

// Handle routes record to the handler registered for its topic.
func (r *Router) Handle(ctx context.Context, record *kgo.Record) error {
	handler, ok := r.handlers[record.Topic]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, record)
		}
		if r.log != nil {
			r.log.Warn("no handler for topic, skipping record", "topic", record.Topic, "key", string(record.Key))
		}
		return nil
	}
	return handler.Handle(ctx, record)
}
