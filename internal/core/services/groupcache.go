package services

import (
	"sync"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// DefaultGroupCacheCapacity bounds a GroupCache created with capacity <= 0.
const DefaultGroupCacheCapacity = 10000

// GroupCache holds copies of recently used change groups by ID with a fixed
// capacity. The oldest entry is evicted first. It is safe for concurrent use.
type GroupCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]domain.ChangeGroup
	order    []string
}

func copyGroup(g domain.ChangeGroup) domain.ChangeGroup {
	g.Actions = append([]domain.MigrationAction(nil), g.Actions...)
	return g
}

// NewGroupCache creates a cache holding at most capacity groups.
func NewGroupCache(capacity int) *GroupCache {
	if capacity <= 0 {
		capacity = DefaultGroupCacheCapacity
	}
	return &GroupCache{
		capacity: capacity,
		entries:  make(map[string]domain.ChangeGroup),
	}
}

// Get returns a cached group.
func (c *GroupCache) Get(id string) (*domain.ChangeGroup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	g = copyGroup(g)
	return &g, true
}

// Put caches a group, evicting the oldest entries beyond capacity.
func (c *GroupCache) Put(g *domain.ChangeGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[g.ID]; !ok {
		c.order = append(c.order, g.ID)
	}
	c.entries[g.ID] = copyGroup(*g)
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Remove drops a group from the cache.
func (c *GroupCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear drops every entry. Status changes made in bulk call it so stale
// statuses are never served.
func (c *GroupCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.ChangeGroup)
	c.order = nil
}

// Len returns the number of cached groups.
func (c *GroupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
