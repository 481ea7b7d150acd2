package eventbus

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Consumer polls the event bus and dispatches each fetched record through a
// Router, committing offsets as it goes (consumer-group mode).
type Consumer struct {
	client *kgo.Client
	router *Router
	log    *slog.Logger
}

// NewConsumer constructs a Consumer over an already-configured
// consumer-group client.
func NewConsumer(client *kgo.Client, router *Router, log *slog.Logger) *Consumer {
	return &Consumer{client: client, router: router, log: log}
}

// Run polls until ctx is cancelled, dispatching every fetched record to the
// router before committing. A handler error is logged and the record is
// still committed, matching the Router's own commit-to-avoid-redelivery
// rule for unroutable topics.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if c.log != nil {
				c.log.Error("event bus fetch error", "topic", topic, "partition", partition, "err", err)
			}
		})

		fetches.EachRecord(func(record *kgo.Record) {
			if err := c.router.Handle(ctx, record); err != nil && c.log != nil {
				c.log.Error("event bus handler failed", "topic", record.Topic, "err", err)
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && c.log != nil {
			c.log.Error("event bus commit offsets failed", "err", err)
		}
	}
}

// Close releases the underlying client's connections.
func (c *Consumer) Close() { c.client.Close() }
