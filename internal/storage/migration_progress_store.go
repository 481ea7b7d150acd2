package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"auditcore/internal/partition"
	"auditcore/pkg/errs"
)

// MigrationProgressStore persists the offline partition migration's last
// completed step in migration_progress (SPEC_FULL.md's supplemented
// resumability feature, grounded on spec §4.8).
type MigrationProgressStore struct {
	db *DBClient
}

// NewMigrationProgressStore constructs a MigrationProgressStore.
func NewMigrationProgressStore(db *DBClient) *MigrationProgressStore {
	return &MigrationProgressStore{db: db}
}

// LastCompleted returns the most recently marked-complete step, if any.
func (s *MigrationProgressStore) LastCompleted(ctx context.Context) (partition.MigrationStep, bool, error) {
	var step string
	err := s.db.Pool().QueryRow(ctx, `SELECT step FROM migration_progress ORDER BY completed_at DESC LIMIT 1`).Scan(&step)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(errs.CodePartition, "read migration progress failed", err)
	}
	return partition.MigrationStep(step), true, nil
}

// MarkCompleted records step as completed now().
func (s *MigrationProgressStore) MarkCompleted(ctx context.Context, step partition.MigrationStep) error {
	const stmt = `INSERT INTO migration_progress (step, completed_at) VALUES ($1, now())`
	if _, err := s.db.Pool().Exec(ctx, stmt, string(step)); err != nil {
		return errs.Wrap(errs.CodePartition, "record migration progress failed", err)
	}
	return nil
}
