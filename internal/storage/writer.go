package storage

import (
	"context"
	"time"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
	"auditcore/pkg/platform/tx"
)

// PartitionResolver locates (and creates on demand) the partition backing a
// given timestamp. internal/partition.Manager implements this.
type PartitionResolver interface {
	PartitionFor(ctx context.Context, t time.Time) (domain.PartitionMetadata, error)
}

// EventPublisher forwards newly persisted events onto the internal event
// bus consumed by the Pattern Detector (spec §2 control flow: "Storage
// Writer emits events to Pattern Detector").
type EventPublisher interface {
	Publish(ctx context.Context, e domain.AuditEvent) error
}

// Writer persists sealed events into the partitioned audit_log table.
type Writer struct {
	db        *DBClient
	cache     *Cache
	resolver  PartitionResolver
	publisher EventPublisher
}

// NewWriter constructs a Writer.
func NewWriter(db *DBClient, cache *Cache, resolver PartitionResolver, publisher EventPublisher) *Writer {
	return &Writer{db: db, cache: cache, resolver: resolver, publisher: publisher}
}

// Write persists a single event; a convenience wrapper over WriteBatch.
func (w *Writer) Write(ctx context.Context, e domain.AuditEvent) error {
	return w.WriteBatch(ctx, []domain.AuditEvent{e})
}

// WriteBatch persists a batch transactionally (spec §4.9): all-or-nothing,
// deduplicated on hash via ON CONFLICT DO NOTHING, and partition-aware.
func (w *Writer) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	pgtx, err := w.db.Pool().Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "begin batch transaction failed", err)
	}
	defer pgtx.Rollback(ctx)
	ctx = tx.WithTx(ctx, pgtx)

	for _, e := range events {
		if _, err := w.resolver.PartitionFor(ctx, e.Timestamp); err != nil {
			// Surfaces as TransientStorageError per spec §7: partition
			// creation failing is retryable, not a permanent write failure.
			return errs.Wrap(errs.CodeTransient, "partition unavailable for batch write", errs.ErrPartitionUnavailable)
		}
		if err := insertOne(ctx, e); err != nil {
			return err
		}
	}

	if err := pgtx.Commit(ctx); err != nil {
		return errs.Wrap(errs.CodeTransient, "commit batch transaction failed", err)
	}
	w.db.observe("storage.write_batch", start, len(events))

	if w.publisher != nil {
		for _, e := range events {
			if err := w.publisher.Publish(ctx, e); err != nil && w.db.log != nil {
				w.db.log.Error("event bus publish failed", "error", err)
			}
		}
	}
	return nil
}

func insertOne(ctx context.Context, e domain.AuditEvent) error {
	dbtx, ok := tx.From(ctx)
	if !ok {
		return errs.New(errs.CodeTransient, "insertOne called without a transaction in context")
	}

	const stmt = `
INSERT INTO audit_log (
	timestamp, ttl, principal_id, organization_id, action,
	target_resource_type, target_resource_id, status, outcome_description,
	hash, hash_algorithm, signature, algorithm, event_version,
	correlation_id, data_classification, retention_policy,
	processing_latency, archived_at, details
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
)
ON CONFLICT (hash) DO NOTHING`

	// ttl is a legacy column retained for schema compatibility; retention is
	// expressed via retention_policy on this model (spec §3).
	_, err := dbtx.Exec(ctx, stmt,
		e.Timestamp, "", string(e.PrincipalID), string(e.OrganizationID), e.Action,
		e.TargetResourceType, e.TargetResourceID, string(e.Status), e.OutcomeDescription,
		e.Hash, e.HashAlgorithm, e.Signature, string(e.Algorithm), e.EventVersion,
		e.CorrelationID, string(e.DataClassification), e.RetentionPolicy,
		e.ProcessingLatencyMS, e.ArchivedAt, e.Details,
	)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "insert audit event failed", err)
	}
	return nil
}
