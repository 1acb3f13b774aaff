// Package cache holds the aggregation views served by the API. Keys carry the
// record set version they were computed from.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Cache is the view cache used by the HTTP layer.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	GetOrCompute(key string, compute func() T) T
	Delete(key string)
	Purge()
	Size() int
}

// VersionedKey scopes a view key to a data version, so entries computed from
// an older record set are never served after a write.
func VersionedKey(view string, version uint64, params ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%d", view, version)
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries from registered caches on an interval.
type Manager struct {
	logger *slog.Logger

	mu     sync.Mutex
	caches []Cleaner

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager. A nil logger uses slog.Default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache to the sweep.
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the number of entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	if total > 0 {
		m.logger.Debug("Expired cache entries removed", "component", "cache", "count", total)
	}
	return total
}

// StartCleanup sweeps every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the sweep started by StartCleanup. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
}
