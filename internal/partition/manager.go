// Package partition implements the Partition Manager (spec §4.8): monthly
// range partitions over audit_log, an ensure-ahead scheduler, index
// management, and a resumable offline migration from a non-partitioned
// table.
package partition

import (
	"context"
	"fmt"
	"time"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// DDLExecutor runs the raw DDL statements the Manager builds. The
// production implementation is the Enhanced DB Client; tests supply a
// recording fake.
type DDLExecutor interface {
	Exec(ctx context.Context, stmt string) error
}

// Catalog tracks which partitions already exist and their retention tags,
// typically backed by a metadata table alongside audit_log.
type Catalog interface {
	List(ctx context.Context) ([]domain.PartitionMetadata, error)
	Record(ctx context.Context, meta domain.PartitionMetadata) error
	Forget(ctx context.Context, partitionName string) error
}

// indexedColumns are the single-column indexes required per partition
// (spec §4.8).
var indexedColumns = []string{
	"timestamp", "principal_id", "organization_id", "action", "status",
	"target_resource_type", "target_resource_id", "correlation_id",
	"data_classification", "retention_policy", "archived_at", "hash",
}

// compositeIndexes are the multi-column indexes required per partition.
var compositeIndexes = [][]string{
	{"organization_id", "timestamp"},
	{"principal_id", "action"},
	{"data_classification", "retention_policy"},
	{"target_resource_type", "target_resource_id"},
}

// Manager maintains the audit_log partition set.
type Manager struct {
	exec    DDLExecutor
	catalog Catalog

	aheadMonths int
}

// Option configures a Manager.
type Option func(*Manager)

// WithAheadMonths sets how many months beyond the current one the
// ensure-ahead scheduler keeps created. Default 6 (spec §4.8).
func WithAheadMonths(n int) Option {
	return func(m *Manager) { m.aheadMonths = n }
}

// New constructs a Manager.
func New(exec DDLExecutor, catalog Catalog, opts ...Option) *Manager {
	m := &Manager{exec: exec, catalog: catalog, aheadMonths: 6}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureAhead creates partitions for the current month and the next
// aheadMonths months, idempotently skipping ones that already exist. Run
// on a 24h scheduler tick (spec §4.8).
func (m *Manager) EnsureAhead(ctx context.Context, now time.Time) error {
	existing, err := m.catalog.List(ctx)
	if err != nil {
		return errs.Wrap(errs.CodePartition, "list partitions failed", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.PartitionName] = true
	}

	y, mo, _ := now.UTC().Date()
	cursor := time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= m.aheadMonths; i++ {
		name := domain.PartitionNameFor(cursor)
		if !have[name] {
			if err := m.Create(ctx, cursor); err != nil {
				return err
			}
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return nil
}

// Create creates the monthly partition covering t, plus its full index set.
func (m *Manager) Create(ctx context.Context, t time.Time) error {
	name := domain.PartitionNameFor(t)
	start, end := domain.PartitionRangeFor(t)

	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF audit_log FOR VALUES FROM ('%s') TO ('%s')`,
		name, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err := m.exec.Exec(ctx, stmt); err != nil {
		return errs.Wrap(errs.CodePartition, "create partition failed", err)
	}

	for _, stmt := range indexStatements(name) {
		if err := m.exec.Exec(ctx, stmt); err != nil {
			return errs.Wrap(errs.CodePartition, "create partition index failed", err)
		}
	}

	if err := m.catalog.Record(ctx, domain.PartitionMetadata{
		PartitionName: name,
		RangeStart:    start,
		RangeEnd:      end,
		CreatedAt:     time.Now(),
	}); err != nil {
		return err
	}

	// Announces the new partition on the partition_created channel, which
	// storage.PartitionNotifier receives. The Storage Writer does not wait on
	// these notifications.
	if err := m.exec.Exec(ctx, fmt.Sprintf(`NOTIFY partition_created, '%s'`, name)); err != nil {
		return errs.Wrap(errs.CodePartition, "notify partition created failed", err)
	}
	return nil
}

func indexStatements(partition string) []string {
	stmts := make([]string, 0, len(indexedColumns)+len(compositeIndexes)+1)
	for _, col := range indexedColumns {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)`, partition, col, partition, col))
	}
	for _, cols := range compositeIndexes {
		name := fmt.Sprintf("idx_%s_%s", partition, joinUnderscore(cols))
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, name, partition, joinComma(cols)))
	}
	stmts = append(stmts, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_details_gin ON %s USING GIN (details)`, partition, partition))
	return stmts
}

func joinUnderscore(cols []string) string { return joinWith(cols, "_") }
func joinComma(cols []string) string      { return joinWith(cols, ", ") }

func joinWith(cols []string, sep string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += sep + c
	}
	return out
}

// Drop removes a partition fully older than the most permissive active
// retention policy. Callers compute that cutoff; Manager only executes it.
func (m *Manager) Drop(ctx context.Context, partitionName string) error {
	if err := m.exec.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, partitionName)); err != nil {
		return errs.Wrap(errs.CodePartition, "drop partition failed", err)
	}
	if err := m.catalog.Forget(ctx, partitionName); err != nil {
		return errs.Wrap(errs.CodePartition, "forget partition failed", err)
	}
	return nil
}

// PartitionFor returns the partition metadata that would hold an event at
// timestamp t, creating it if it does not yet exist.
func (m *Manager) PartitionFor(ctx context.Context, t time.Time) (domain.PartitionMetadata, error) {
	existing, err := m.catalog.List(ctx)
	if err != nil {
		return domain.PartitionMetadata{}, errs.Wrap(errs.CodePartition, "list partitions failed", err)
	}
	name := domain.PartitionNameFor(t)
	for _, p := range existing {
		if p.PartitionName == name {
			return p, nil
		}
	}

	if err := m.Create(ctx, t); err != nil {
		return domain.PartitionMetadata{}, errs.Wrap(errs.CodePartition, "on-demand partition create failed", errs.ErrMissingPartition)
	}

	start, end := domain.PartitionRangeFor(t)
	return domain.PartitionMetadata{PartitionName: name, RangeStart: start, RangeEnd: end, CreatedAt: time.Now()}, nil
}
