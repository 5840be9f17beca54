// Package cache stores fetched pages for a short time so repeated reads of
// the same page skip the remote API.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte-value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on read
// and when the entry limit is reached.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

// DefaultMaxEntries bounds a Memory cache created with a non-positive limit.
const DefaultMaxEntries = 1000

// NewMemory returns an empty in-process cache holding at most maxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value. A non-positive ttl keeps the entry until evicted.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// evictLocked drops expired entries, then the entry closest to expiry if
// the cache is still full.
func (m *Memory) evictLocked() {
	now := m.now()
	var victim string
	var soonest time.Time
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
			continue
		}
		if victim == "" || (!e.expires.IsZero() && (soonest.IsZero() || e.expires.Before(soonest))) {
			victim, soonest = k, e.expires
		}
	}
	if len(m.entries) >= m.maxEntries && victim != "" {
		delete(m.entries, victim)
	}
}

// Len reports the number of stored entries, including expired ones not yet
// dropped.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
