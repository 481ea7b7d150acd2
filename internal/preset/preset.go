// Package preset implements the Preset Resolver (spec §4.4): a cached
// org-over-default merge of named event templates.
package preset

import (
	"container/list"
	"context"
	"sync"

	"auditcore/pkg/domain"
)

// Store loads the org-specific and default candidates for a preset name in
// a single round trip, ordered so the org-specific candidate is returned
// first when present. Either return value may be nil.
type Store interface {
	Load(ctx context.Context, name string, organizationID domain.OrganizationID) (orgPreset, defaultPreset *domain.Preset, err error)
}

type cacheKey struct {
	name string
	org  domain.OrganizationID
}

// Resolver resolves presets through Store, merging org-over-default and
// caching the merged result under (name, organizationId) in a bounded LRU.
type Resolver struct {
	store    Store
	capacity int

	mu      sync.Mutex
	entries map[cacheKey]*list.Element
	order   *list.List // front = most recently used
}

type cacheEntry struct {
	key    cacheKey
	preset *domain.Preset
}

const defaultCapacity = 1000

// New constructs a Resolver. capacity <= 0 uses defaultCapacity.
func New(store Store, capacity int) *Resolver {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Resolver{
		store:    store,
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

// Resolve returns the merged preset for (name, organizationId), or nil if
// neither an org-specific nor a default preset exists under that name.
func (r *Resolver) Resolve(ctx context.Context, name string, organizationID domain.OrganizationID) (*domain.Preset, error) {
	key := cacheKey{name: name, org: organizationID}

	if p, ok := r.get(key); ok {
		return p, nil
	}

	orgPreset, defaultPreset, err := r.store.Load(ctx, name, organizationID)
	if err != nil {
		return nil, err
	}

	merged := domain.Merge(defaultPreset, orgPreset)
	r.put(key, merged)
	return merged, nil
}

// InvalidateAll clears the cache. PresetStore.Save does not call it, so a
// preset write does not by itself clear cached merges.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[cacheKey]*list.Element)
	r.order = list.New()
}

func (r *Resolver) get(key cacheKey) (*domain.Preset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	r.order.MoveToFront(el)
	return el.Value.(*cacheEntry).preset, true
}

func (r *Resolver) put(key cacheKey, preset *domain.Preset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.entries[key]; ok {
		r.order.MoveToFront(el)
		el.Value.(*cacheEntry).preset = preset
		return
	}

	el := r.order.PushFront(&cacheEntry{key: key, preset: preset})
	r.entries[key] = el

	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		r.order.Remove(oldest)
		delete(r.entries, oldest.Value.(*cacheEntry).key)
	}
}
