package advisory

import (
	"sync"
	"time"

	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/jonboulle/clockwork"
)

// CacheState describes the snapshot slot at a point in time.
type CacheState string

const (
	CacheEmpty CacheState = "empty"
	CacheFresh CacheState = "fresh"
	CacheStale CacheState = "stale"
)

// CachedSnapshot pairs a snapshot with the instant it was fetched.
type CachedSnapshot struct {
	Snapshot  domain.WeatherSnapshot
	FetchedAt time.Time
}

// snapshotCache is a single-slot TTL cache. The slot is replaced as a whole,
// never mutated in place.
type snapshotCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock clockwork.Clock
	slot  *CachedSnapshot
}

func newSnapshotCache(ttl time.Duration, clock clockwork.Clock) *snapshotCache {
	return &snapshotCache{ttl: ttl, clock: clock}
}

// get returns the cached snapshot if it is younger than the TTL.
func (c *snapshotCache) get() (domain.WeatherSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot == nil || !c.fresh(c.slot) {
		return domain.WeatherSnapshot{}, false
	}
	return c.slot.Snapshot, true
}

func (c *snapshotCache) put(s domain.WeatherSnapshot) {
	entry := &CachedSnapshot{Snapshot: s, FetchedAt: c.clock.Now()}

	c.mu.Lock()
	c.slot = entry
	c.mu.Unlock()
}

// clear drops the slot so stale data is never evaluated after a failed refetch.
func (c *snapshotCache) clear() {
	c.mu.Lock()
	c.slot = nil
	c.mu.Unlock()
}

func (c *snapshotCache) state() CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.slot == nil:
		return CacheEmpty
	case c.fresh(c.slot):
		return CacheFresh
	default:
		return CacheStale
	}
}

func (c *snapshotCache) fresh(e *CachedSnapshot) bool {
	return c.clock.Since(e.FetchedAt) < c.ttl
}
