package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"auditcore/pkg/errs"
)

// Cache is the Redis-backed L2 cache for cacheable reads (spec §4.10).
// Keys are deterministic functions of (queryName, params) so repeated reads
// with identical parameters hit the same entry, and writes can invalidate
// by recomputing the same key.
type Cache struct {
	rdb *goredis.Client
}

// NewCache wraps an existing go-redis client.
func NewCache(rdb *goredis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Key derives the deterministic cache key for (queryName, params). Params
// are sorted by key before hashing so argument order never affects it.
func Key(queryName string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(queryName))
	for _, k := range keys {
		h.Write([]byte{'|'})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		fmt.Fprintf(h, "%v", params[k])
	}
	return "cache:" + queryName + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Get unmarshals a cached value into dest, reporting whether it was present.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c.rdb == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.CodeTransient, "cache get failed", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, errs.Wrap(errs.CodeSerializaton, "cache payload corrupt", err)
	}
	return true, nil
}

// Set stores value under key with ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "cache marshal failed", err)
	}
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return errs.Wrap(errs.CodeTransient, "cache set failed", err)
	}
	return nil
}

// Invalidate removes the given keys. The Storage Writer does not call it,
// so a batch insert leaves previously cached reads in place.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c.rdb == nil || len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return errs.Wrap(errs.CodeTransient, "cache invalidate failed", err)
	}
	return nil
}
