package eventbus

import (
	"github.com/twmb/franz-go/pkg/kgo"

	"auditcore/pkg/errs"
)

// NewProducerClient constructs a kgo.Client suitable for NewProducer.
func NewProducerClient(brokers []string, topic string) (*kgo.Client, error) {
	if topic == "" {
		topic = defaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfig, "construct event bus producer client failed", err)
	}
	return client, nil
}

// NewConsumerClient constructs a kgo.Client in consumer-group mode suitable
// for NewConsumer.
func NewConsumerClient(brokers []string, group string, topics ...string) (*kgo.Client, error) {
	if len(topics) == 0 {
		topics = []string{defaultTopic}
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfig, "construct event bus consumer client failed", err)
	}
	return client, nil
}
