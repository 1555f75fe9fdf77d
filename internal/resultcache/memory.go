package resultcache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is the in-process tier: a concurrent-safe LRU with optional TTL.
type Memory struct {
	lru      *expirable.LRU[Key, string]
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
}

// Stats contains memory tier statistics.
type Stats struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}

// NewMemory creates a Memory holding at most capacity labels (0 means
// unbounded) that expire after ttl (0 means never).
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{
		lru:      expirable.NewLRU[Key, string](capacity, nil, ttl),
		capacity: capacity,
	}
}

// Get returns the cached label for key.
func (m *Memory) Get(key Key) (string, bool) {
	label, ok := m.lru.Get(key)
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return label, ok
}

// Put caches label under key.
func (m *Memory) Put(key Key, label string) {
	m.lru.Add(key, label)
}

// Len returns the number of cached labels.
func (m *Memory) Len() int { return m.lru.Len() }

// Purge drops every cached label and resets the counters.
func (m *Memory) Purge() {
	m.lru.Purge()
	m.hits.Store(0)
	m.misses.Store(0)
}

// Stats returns a snapshot of the memory tier.
func (m *Memory) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Entries:  m.lru.Len(),
		Capacity: m.capacity,
		Hits:     hits,
		Misses:   misses,
		HitRate:  rate,
	}
}
