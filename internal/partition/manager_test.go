package partition_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/partition"
	"auditcore/pkg/domain"
)

type fakeExecutor struct {
	statements []string
}

func (f *fakeExecutor) Exec(ctx context.Context, stmt string) error {
	f.statements = append(f.statements, stmt)
	return nil
}

type fakeCatalog struct {
	metas map[string]domain.PartitionMetadata
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{metas: map[string]domain.PartitionMetadata{}}
}

func (c *fakeCatalog) List(ctx context.Context) ([]domain.PartitionMetadata, error) {
	out := make([]domain.PartitionMetadata, 0, len(c.metas))
	for _, m := range c.metas {
		out = append(out, m)
	}
	return out, nil
}

func (c *fakeCatalog) Record(ctx context.Context, meta domain.PartitionMetadata) error {
	c.metas[meta.PartitionName] = meta
	return nil
}

func (c *fakeCatalog) Forget(ctx context.Context, partitionName string) error {
	delete(c.metas, partitionName)
	return nil
}

func TestManager_Create_ScenarioS6(t *testing.T) {
	exec := &fakeExecutor{}
	cat := newFakeCatalog()
	m := partition.New(exec, cat)

	ts, err := time.Parse(time.RFC3339Nano, "2024-08-15T23:59:59.500+02:00")
	require.NoError(t, err)

	require.NoError(t, m.Create(context.Background(), ts))
	assert.Contains(t, cat.metas, "audit_log_2024_08")
	assert.Contains(t, exec.statements, "NOTIFY partition_created, 'audit_log_2024_08'")
}

func TestManager_PartitionFor_ContainsTimestamp(t *testing.T) {
	exec := &fakeExecutor{}
	cat := newFakeCatalog()
	m := partition.New(exec, cat)

	ts, err := time.Parse(time.RFC3339Nano, "2024-08-15T23:59:59.500+02:00")
	require.NoError(t, err)

	meta, err := m.PartitionFor(context.Background(), ts)
	require.NoError(t, err)
	assert.Equal(t, "audit_log_2024_08", meta.PartitionName)
	assert.True(t, meta.Contains(ts))
}

func TestManager_EnsureAhead_SkipsExisting(t *testing.T) {
	exec := &fakeExecutor{}
	cat := newFakeCatalog()
	m := partition.New(exec, cat, partition.WithAheadMonths(2))

	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.EnsureAhead(context.Background(), now))
	firstRunStmts := len(exec.statements)

	require.NoError(t, m.EnsureAhead(context.Background(), now))
	assert.Equal(t, firstRunStmts, len(exec.statements))
}

func TestManager_Drop(t *testing.T) {
	exec := &fakeExecutor{}
	cat := newFakeCatalog()
	m := partition.New(exec, cat)

	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Create(context.Background(), ts))
	require.NoError(t, m.Drop(context.Background(), "audit_log_2020_01"))

	assert.NotContains(t, cat.metas, "audit_log_2020_01")
}
