// Package cache holds rendered list views so repeated admin reads do not hit
// the database. Writers invalidate the key after every successful change.
package cache

import (
	"context"
	"sync"
	"time"
)

// AppointmentListKey is the key of the admin appointment list view.
const AppointmentListKey = "carepulse:appointments:recent"

// ListCache stores a view under a key together with a version counter.
// Readers take the version before they query the source and store the
// rendered view with SetIfVersion, so a view built before an invalidation
// is never written back over it.
type ListCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Version(ctx context.Context, key string) (int64, error)
	// SetIfVersion stores value only if the version of key is still
	// version. It reports whether the value was stored.
	SetIfVersion(ctx context.Context, key string, value []byte, ttl time.Duration, version int64) (bool, error)
	// Invalidate drops the entry and bumps its version.
	Invalidate(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process ListCache used when no Redis is configured.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	versions map[string]int64
	now      func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]memoryEntry),
		versions: make(map[string]int64),
		now:      time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryCache) Version(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[key], nil
}

func (m *MemoryCache) SetIfVersion(_ context.Context, key string, value []byte, ttl time.Duration, version int64) (bool, error) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[key] != version {
		return false, nil
	}
	m.entries[key] = e
	return true, nil
}

func (m *MemoryCache) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.versions[key]++
	m.mu.Unlock()
	return nil
}
