package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dailywin/backend/internal/types"
)

type memoryEntry struct {
	stats   types.HourStats
	expires time.Time
}

// MemoryHourCache keeps hour stats in process. Used when Redis is not configured.
type MemoryHourCache struct {
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryHourCache creates a cache whose entries expire after ttl (0 keeps them forever)
func NewMemoryHourCache(ttl time.Duration) *MemoryHourCache {
	return &MemoryHourCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryHourCache) Get(_ context.Context, userID, hourKey string) (types.HourStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[Key(userID, hourKey)]
	if !ok {
		return types.HourStats{}, false
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		return types.HourStats{}, false
	}
	return entry.stats, true
}

func (c *MemoryHourCache) Set(_ context.Context, userID, hourKey string, stats types.HourStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{stats: stats}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.entries[Key(userID, hourKey)] = entry
}

// Prune drops expired entries and returns how many were removed
func (c *MemoryHourCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !entry.expires.IsZero() && now.After(entry.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of stored entries, expired ones included
func (c *MemoryHourCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
