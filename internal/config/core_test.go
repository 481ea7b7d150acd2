package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/config"
)

func TestCore_UpdateBumpsVersionAndAppendsChangeLog(t *testing.T) {
	c := config.New(nil)
	initialVersion := c.Version()

	require.NoError(t, c.Update("queue.concurrency", 10, "alice", "scale up"))

	assert.Equal(t, initialVersion+1, c.Version())
	log := c.ChangeLog()
	require.Len(t, log, 1)
	assert.Equal(t, "queue.concurrency", log[0].Path)
	assert.Equal(t, "alice", log[0].ChangedBy)
}

func TestCore_GetReadsNestedPath(t *testing.T) {
	c := config.New(nil)
	require.NoError(t, c.Update("db.maxConns", 20, "ops", "initial tuning"))

	v, ok := c.Get("db.maxConns")
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestCore_SubscribeOnlyNotifiesMatchingPrefix(t *testing.T) {
	c := config.New(nil)
	var queueNotified, dbNotified bool

	c.Subscribe("queue.", func(path string, value any) { queueNotified = true })
	c.Subscribe("db.", func(path string, value any) { dbNotified = true })

	require.NoError(t, c.Update("queue.concurrency", 5, "alice", "tune"))

	assert.True(t, queueNotified)
	assert.False(t, dbNotified)
}
