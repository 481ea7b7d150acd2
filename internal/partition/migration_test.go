package partition_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/partition"
)

type fakeProgress struct {
	completed []partition.MigrationStep
}

func (f *fakeProgress) LastCompleted(ctx context.Context) (partition.MigrationStep, bool, error) {
	if len(f.completed) == 0 {
		return "", false, nil
	}
	return f.completed[len(f.completed)-1], true, nil
}

func (f *fakeProgress) MarkCompleted(ctx context.Context, step partition.MigrationStep) error {
	f.completed = append(f.completed, step)
	return nil
}

func TestMigrator_RunsAllSteps(t *testing.T) {
	exec := &fakeExecutor{}
	cat := newFakeCatalog()
	mgr := partition.New(exec, cat)
	progress := &fakeProgress{}
	migrator := partition.NewMigrator(exec, mgr, progress)

	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, migrator.Run(context.Background(), min, max))
	assert.Len(t, progress.completed, 6)
	assert.Equal(t, partition.StepDropOld, progress.completed[len(progress.completed)-1])
}

func TestMigrator_ResumesFromLastCompletedStep(t *testing.T) {
	exec := &fakeExecutor{}
	cat := newFakeCatalog()
	mgr := partition.New(exec, cat)
	progress := &fakeProgress{completed: []partition.MigrationStep{
		partition.StepRenameOld, partition.StepCreateParent,
	}}
	migrator := partition.NewMigrator(exec, mgr, progress)

	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, migrator.Run(context.Background(), min, max))
	assert.Len(t, progress.completed, 6)
}
