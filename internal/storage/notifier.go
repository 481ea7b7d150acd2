package storage

import (
	"log/slog"
	"time"

	"github.com/lib/pq"

	"auditcore/pkg/errs"
)

// PartitionNotifier listens on Postgres's partition_created NOTIFY channel
// over a dedicated lib/pq connection (spec §4.8/§4.10). cmd/worker logs
// each notification; the Storage Writer does not consume them.
type PartitionNotifier struct {
	listener *pq.Listener
	log      *slog.Logger
}

// NewPartitionNotifier opens a listener against dsn and subscribes to
// partition_created.
func NewPartitionNotifier(dsn string, log *slog.Logger) (*PartitionNotifier, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && log != nil {
			log.Error("partition notify listener event", "error", err)
		}
	})
	if err := listener.Listen("partition_created"); err != nil {
		listener.Close()
		return nil, errs.Wrap(errs.CodeTransient, "listen on partition_created failed", err)
	}
	return &PartitionNotifier{listener: listener, log: log}, nil
}

// Notifications streams the created partition's name as each NOTIFY
// arrives. The channel closes once the listener is closed.
func (n *PartitionNotifier) Notifications() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for note := range n.listener.Notify {
			if note == nil {
				continue
			}
			out <- note.Extra
		}
	}()
	return out
}

// Close releases the underlying connection.
func (n *PartitionNotifier) Close() error {
	return n.listener.Close()
}
