package cache

import (
	"sync"
	"time"
)

// TTLEntry represents an entry in TTLMap
type TTLEntry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// TTLMap is a thread-safe map with TTL for each entry. Entries are refreshed
// on access through GetOrSet.
type TTLMap struct {
	Data map[string]*TTLEntry
	Mu   sync.RWMutex
	TTL  time.Duration
}

// NewTTLMap creates a new TTLMap with the specified TTL
func NewTTLMap(ttl time.Duration) *TTLMap {
	return &TTLMap{
		Data: make(map[string]*TTLEntry),
		TTL:  ttl,
	}
}

// GetOrSet returns the live value for key, or stores the result of create.
// Either way the entry's expiry is pushed forward.
func (m *TTLMap) GetOrSet(key string, create func() interface{}) interface{} {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	now := time.Now()
	if entry, ok := m.Data[key]; ok && !now.After(entry.ExpiresAt) {
		entry.ExpiresAt = now.Add(m.TTL)
		return entry.Value
	}
	value := create()
	m.Data[key] = &TTLEntry{Value: value, ExpiresAt: now.Add(m.TTL)}
	return value
}

// Sweep drops every expired entry and returns how many were removed.
func (m *TTLMap) Sweep() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	now := time.Now()
	removed := 0
	for k, entry := range m.Data {
		if now.After(entry.ExpiresAt) {
			delete(m.Data, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (m *TTLMap) Len() int {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	return len(m.Data)
}
