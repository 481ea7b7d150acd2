package eventbus

import (
	"context"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"auditcore/pkg/errs"
)

const (
	defaultPartitions        = 6
	defaultReplicationFactor = 1
)

// EnsureTopic creates topic if it does not already exist, idempotently, so
// the Storage Writer's first publish never races topic auto-creation.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	if topic == "" {
		topic = defaultTopic
	}
	adm := kadm.NewClient(client)
	defer adm.Close()

	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "list event bus topics failed", err)
	}
	if topics.Has(topic) {
		return nil
	}

	resp, err := adm.CreateTopics(ctx, defaultPartitions, defaultReplicationFactor, nil, topic)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "create event bus topic failed", err)
	}
	if r, ok := resp[topic]; ok && r.Err != nil {
		return errs.Wrap(errs.CodeTransient, "create event bus topic failed", r.Err)
	}
	return nil
}
