package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache[T any](size int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	// "b" is now least recently used
	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Evictions: 1}, c.Stats())
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache[string](10, time.Minute)
	c.Set("k", "v")

	clock.advance(time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok, "entries expire at exactly ttl")

	c.Set("k1", "v")
	clock.advance(30 * time.Second)
	c.Set("k2", "v")
	clock.advance(30 * time.Second)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_GetOrCompute(t *testing.T) {
	c, _ := newTestCache[[]int](4, time.Minute)
	calls := 0
	compute := func() []int {
		calls++
		return []int{2023, 2024}
	}

	assert.Equal(t, []int{2023, 2024}, c.GetOrCompute(VersionedKey("annual", 1), compute))
	assert.Equal(t, []int{2023, 2024}, c.GetOrCompute(VersionedKey("annual", 1), compute))
	assert.Equal(t, 1, calls)

	// a new version is a new key
	c.GetOrCompute(VersionedKey("annual", 2), compute)
	assert.Equal(t, 2, calls)
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	c.Delete("missing")
	assert.Equal(t, 1, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	c.Set("c", 3)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestNewLRUCache_MinimumSize(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Size())
}

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "annual@3", VersionedKey("annual", 3))
	assert.Equal(t, "monthly@4|carConsumption", VersionedKey("monthly", 4, "carConsumption"))
	assert.NotEqual(t, VersionedKey("annual", 3), VersionedKey("annual", 4))
}

func TestManager_Sweep(t *testing.T) {
	a, clock := newTestCache[int](10, time.Minute)
	b, _ := newTestCache[string](10, time.Hour)
	b.now = clock.now
	a.Set("x", 1)
	b.Set("y", "z")

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	clock.advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, a.Size())
	assert.Equal(t, 1, b.Size())
}

func TestManager_StartStop(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(2 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}

var _ Cache[int] = (*LRUCache[int])(nil)
