package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"auditcore/internal/storage"
)

func TestKey_DeterministicRegardlessOfParamOrder(t *testing.T) {
	k1 := storage.Key("listByUser", map[string]any{"user": "u1", "limit": 10})
	k2 := storage.Key("listByUser", map[string]any{"limit": 10, "user": "u1"})
	assert.Equal(t, k1, k2)
}

func TestKey_DiffersByQueryName(t *testing.T) {
	k1 := storage.Key("listByUser", map[string]any{"user": "u1"})
	k2 := storage.Key("listByOrg", map[string]any{"user": "u1"})
	assert.NotEqual(t, k1, k2)
}

func TestKey_DiffersByParamValue(t *testing.T) {
	k1 := storage.Key("listByUser", map[string]any{"user": "u1"})
	k2 := storage.Key("listByUser", map[string]any{"user": "u2"})
	assert.NotEqual(t, k1, k2)
}
