package engine

import (
	"sync"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
)

// snapCache is the process-wide snapshot cache, keyed by view. Independently
// mounted views bind to an explicit key instead of sharing ambient state, and
// an engine invalidates its entry on Stop so a disposed view never leaks a
// snapshot into the next mount.
type snapCache struct {
	mu sync.RWMutex
	m  map[string]*domain.Snapshot
}

var sharedCache = &snapCache{m: make(map[string]*domain.Snapshot)}

func (c *snapCache) get(key string) *domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[key]
}

func (c *snapCache) set(key string, snap *domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = snap
}

func (c *snapCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// CachedSnapshot returns the last snapshot published under a view key, or nil
// when no engine has produced one since the last invalidation. Used for fast
// initial paint when a view remounts within the same process.
func CachedSnapshot(viewKey string) *domain.Snapshot {
	return sharedCache.get(viewKey)
}
