package resultcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGet(t *testing.T) {
	m := NewMemory(10, 0)
	key := Key{X: 12.0, Y: 57.0, Variable: "location_nation"}

	_, ok := m.Get(key)
	assert.False(t, ok)

	m.Put(key, "Sweden")
	label, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, "Sweden", label)

	// Exact float equality: a neighbouring coordinate is a different key.
	_, ok = m.Get(Key{X: 12.000000001, Y: 57.0, Variable: "location_nation"})
	assert.False(t, ok)
	_, ok = m.Get(Key{X: 12.0, Y: 57.0, Variable: "location_county"})
	assert.False(t, ok)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemory(2, 0)
	a := Key{X: 1, Y: 1, Variable: "v"}
	b := Key{X: 2, Y: 2, Variable: "v"}
	c := Key{X: 3, Y: 3, Variable: "v"}

	m.Put(a, "A")
	m.Put(b, "B")
	_, _ = m.Get(a)
	m.Put(c, "C")

	assert.Equal(t, 2, m.Len())
	_, ok := m.Get(b)
	assert.False(t, ok)
	_, ok = m.Get(a)
	assert.True(t, ok)
}

func TestMemory_UnboundedWhenZero(t *testing.T) {
	m := NewMemory(0, 0)
	for i := 0; i < 500; i++ {
		m.Put(Key{X: float64(i), Y: 0, Variable: "v"}, fmt.Sprint(i))
	}
	assert.Equal(t, 500, m.Len())
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory(10, 20*time.Millisecond)
	key := Key{X: 1, Y: 1, Variable: "v"}
	m.Put(key, "A")

	_, ok := m.Get(key)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = m.Get(key)
	assert.False(t, ok)
}

func TestMemory_Stats(t *testing.T) {
	m := NewMemory(5, 0)
	key := Key{X: 1, Y: 1, Variable: "v"}

	m.Get(key)
	m.Put(key, "A")
	m.Get(key)
	m.Get(key)

	s := m.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 5, s.Capacity)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 0.0001)

	m.Purge()
	s = m.Stats()
	assert.Equal(t, 0, s.Entries)
	assert.Equal(t, int64(0), s.Hits)
	assert.InDelta(t, 0, s.HitRate, 0.0001)
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(100, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := Key{X: float64(j % 50), Y: float64(i), Variable: "v"}
				m.Put(key, "x")
				m.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 100)
}
