package storage

import (
	"context"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// DDLExecutor adapts DBClient to partition.DDLExecutor, running the raw
// CREATE/DROP TABLE and CREATE INDEX statements the Partition Manager
// builds (spec §4.8).
type DDLExecutor struct {
	db *DBClient
}

// NewDDLExecutor constructs a DDLExecutor.
func NewDDLExecutor(db *DBClient) *DDLExecutor {
	return &DDLExecutor{db: db}
}

// Exec runs stmt against the pool.
func (e *DDLExecutor) Exec(ctx context.Context, stmt string) error {
	if _, err := e.db.Pool().Exec(ctx, stmt); err != nil {
		return errs.Wrap(errs.CodePartition, "partition DDL failed", err)
	}
	return nil
}

// PartitionCatalog persists partition metadata alongside audit_log,
// implementing partition.Catalog (spec §4.8).
type PartitionCatalog struct {
	db *DBClient
}

// NewPartitionCatalog constructs a PartitionCatalog.
func NewPartitionCatalog(db *DBClient) *PartitionCatalog {
	return &PartitionCatalog{db: db}
}

// List returns every tracked partition's metadata.
func (c *PartitionCatalog) List(ctx context.Context) ([]domain.PartitionMetadata, error) {
	const stmt = `
SELECT partition_name, range_start, range_end, row_count, bytes, created_at
FROM audit_log_partitions
ORDER BY range_start`

	rows, err := c.db.Pool().Query(ctx, stmt)
	if err != nil {
		return nil, errs.Wrap(errs.CodePartition, "list partition catalog failed", err)
	}
	defer rows.Close()

	var out []domain.PartitionMetadata
	for rows.Next() {
		var m domain.PartitionMetadata
		if err := rows.Scan(&m.PartitionName, &m.RangeStart, &m.RangeEnd, &m.RowCount, &m.Bytes, &m.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.CodePartition, "scan partition catalog row failed", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Record upserts meta's catalog row.
func (c *PartitionCatalog) Record(ctx context.Context, meta domain.PartitionMetadata) error {
	const stmt = `
INSERT INTO audit_log_partitions (partition_name, range_start, range_end, row_count, bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (partition_name) DO UPDATE SET
	row_count = EXCLUDED.row_count,
	bytes = EXCLUDED.bytes`

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = meta.RangeStart
	}
	_, err := c.db.Pool().Exec(ctx, stmt, meta.PartitionName, meta.RangeStart, meta.RangeEnd, meta.RowCount, meta.Bytes, meta.CreatedAt)
	if err != nil {
		return errs.Wrap(errs.CodePartition, "record partition catalog row failed", err)
	}
	return nil
}

// Forget removes partitionName's catalog row.
func (c *PartitionCatalog) Forget(ctx context.Context, partitionName string) error {
	_, err := c.db.Pool().Exec(ctx, `DELETE FROM audit_log_partitions WHERE partition_name = $1`, partitionName)
	if err != nil {
		return errs.Wrap(errs.CodePartition, "forget partition catalog row failed", err)
	}
	return nil
}
