package partition

import (
	"context"
	"fmt"
	"time"

	"auditcore/pkg/errs"
)

// MigrationStep names one step of the offline non-partitioned-to-partitioned
// migration (spec §4.8). Steps run in order and are individually idempotent
// so a failure partway through can be resumed by re-running from the last
// completed step.
type MigrationStep string

const (
	StepRenameOld        MigrationStep = "rename_old"
	StepCreateParent     MigrationStep = "create_parent"
	StepCreatePartitions MigrationStep = "create_partitions"
	StepCopyData         MigrationStep = "copy_data"
	StepRecreateIndexes  MigrationStep = "recreate_indexes"
	StepDropOld          MigrationStep = "drop_old"
)

var migrationStepOrder = []MigrationStep{
	StepRenameOld, StepCreateParent, StepCreatePartitions, StepCopyData, StepRecreateIndexes, StepDropOld,
}

// ProgressStore persists which migration steps have completed, the
// SUPPLEMENTED "migration_progress marker rows" feature from SPEC_FULL.md
// that makes the offline migration resumable across process restarts.
type ProgressStore interface {
	LastCompleted(ctx context.Context) (MigrationStep, bool, error)
	MarkCompleted(ctx context.Context, step MigrationStep) error
}

// Migrator runs the offline migration of a non-partitioned audit_log table
// into the partitioned layout.
type Migrator struct {
	exec     DDLExecutor
	manager  *Manager
	progress ProgressStore
}

// NewMigrator constructs a Migrator.
func NewMigrator(exec DDLExecutor, manager *Manager, progress ProgressStore) *Migrator {
	return &Migrator{exec: exec, manager: manager, progress: progress}
}

// Run executes each migration step in order, skipping steps already marked
// complete in progress. minTS/maxTS bound the partitions created in
// StepCreatePartitions.
func (m *Migrator) Run(ctx context.Context, minTS, maxTS time.Time) error {
	last, ok, err := m.progress.LastCompleted(ctx)
	if err != nil {
		return errs.Wrap(errs.CodePartition, "read migration progress failed", err)
	}

	startIdx := 0
	if ok {
		for i, s := range migrationStepOrder {
			if s == last {
				startIdx = i + 1
				break
			}
		}
	}

	for _, step := range migrationStepOrder[startIdx:] {
		if err := m.runStep(ctx, step, minTS, maxTS); err != nil {
			return fmt.Errorf("migration step %s: %w", step, err)
		}
		if err := m.progress.MarkCompleted(ctx, step); err != nil {
			return errs.Wrap(errs.CodePartition, "record migration progress failed", err)
		}
	}
	return nil
}

func (m *Migrator) runStep(ctx context.Context, step MigrationStep, minTS, maxTS time.Time) error {
	switch step {
	case StepRenameOld:
		return m.exec.Exec(ctx, `ALTER TABLE IF EXISTS audit_log RENAME TO audit_log_legacy`)
	case StepCreateParent:
		return m.exec.Exec(ctx, `CREATE TABLE IF NOT EXISTS audit_log (LIKE audit_log_legacy INCLUDING ALL) PARTITION BY RANGE (timestamp)`)
	case StepCreatePartitions:
		y, mo, _ := minTS.UTC().Date()
		cursor := time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)
		for !cursor.After(maxTS) {
			if err := m.manager.Create(ctx, cursor); err != nil {
				return err
			}
			cursor = cursor.AddDate(0, 1, 0)
		}
		return nil
	case StepCopyData:
		return m.exec.Exec(ctx, `INSERT INTO audit_log SELECT * FROM audit_log_legacy ON CONFLICT DO NOTHING`)
	case StepRecreateIndexes:
		// Indexes were already created per-partition in StepCreatePartitions;
		// this step exists to make resumption semantics explicit even though
		// it is a no-op today.
		return nil
	case StepDropOld:
		return m.exec.Exec(ctx, `DROP TABLE IF EXISTS audit_log_legacy`)
	default:
		return errs.New(errs.CodeConfig, "unknown migration step")
	}
}
