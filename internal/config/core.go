// Package config implements the Configuration Core (spec §4.15): a single
// versioned config object mutated only through Update, with change-record
// history, selective-path subscriber notification, and an optional
// fsnotify-backed hot-reload watcher.
package config

import (
	"strings"
	"sync"
	"time"
)

// ChangeRecord is appended to the change log on every successful Update.
type ChangeRecord struct {
	Path      string
	Value     any
	ChangedBy string
	Reason    string
	At        time.Time
}

// Subscriber is notified when a path under its prefix changes.
type Subscriber func(path string, value any)

// Core is the single versioned configuration object. Sections are stored as
// a nested map so arbitrary paths ("queue.concurrency", "alerting.cooldownSeconds")
// can be addressed without a fixed schema per section.
type Core struct {
	mu          sync.RWMutex
	version     int
	lastUpdated time.Time
	sections    map[string]any
	changes     []ChangeRecord
	subscribers []subscription
	now         func() time.Time
}

type subscription struct {
	prefix string
	fn     Subscriber
}

// New constructs a Core seeded with the given initial sections.
func New(initial map[string]any) *Core {
	if initial == nil {
		initial = map[string]any{}
	}
	return &Core{
		sections:    initial,
		version:     1,
		lastUpdated: time.Now(),
		now:         time.Now,
	}
}

// Version returns the current config version.
func (c *Core) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// LastUpdated returns the timestamp of the most recent Update.
func (c *Core) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// Get reads the value at a dot-separated path, e.g. "queue.concurrency".
func (c *Core) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getPath(c.sections, strings.Split(path, "."))
}

// Update mutates the value at path, appends a ChangeRecord, bumps the
// version, and notifies subscribers whose prefix matches path (spec §4.15).
func (c *Core) Update(path string, value any, changedBy, reason string) error {
	c.mu.Lock()
	segments := strings.Split(path, ".")
	setPath(c.sections, segments, value)
	c.version++
	c.lastUpdated = c.now()
	record := ChangeRecord{Path: path, Value: value, ChangedBy: changedBy, Reason: reason, At: c.lastUpdated}
	c.changes = append(c.changes, record)
	subs := append([]subscription(nil), c.subscribers...)
	c.mu.Unlock()

	for _, s := range subs {
		if strings.HasPrefix(path, s.prefix) {
			s.fn(path, value)
		}
	}
	return nil
}

// Subscribe registers fn to receive notifications for any Update whose path
// starts with prefix. An empty prefix matches every path.
func (c *Core) Subscribe(prefix string, fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, subscription{prefix: prefix, fn: fn})
}

// ChangeLog returns a copy of every change record applied so far.
func (c *Core) ChangeLog() []ChangeRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ChangeRecord(nil), c.changes...)
}

func getPath(m map[string]any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	v, ok := m[segments[0]]
	if !ok {
		return nil, false
	}
	if len(segments) == 1 {
		return v, true
	}
	nested, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return getPath(nested, segments[1:])
}

func setPath(m map[string]any, segments []string, value any) {
	if len(segments) == 1 {
		m[segments[0]] = value
		return
	}
	nested, ok := m[segments[0]].(map[string]any)
	if !ok {
		nested = map[string]any{}
		m[segments[0]] = nested
	}
	setPath(nested, segments[1:], value)
}
