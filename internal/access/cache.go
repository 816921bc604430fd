package access

import (
	"context"
	"fmt"
	"sync"
)

// Key identifies one cached access decision.
type Key struct {
	UserID    int64
	ProjectID int64
}

// String renders the key as "{user_id}:{project_id}".
func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.UserID, k.ProjectID)
}

// Cache stores access decisions. Entries never expire on their own; they are
// removed only through the Delete family or Flush.
type Cache interface {
	Get(ctx context.Context, key Key) (allowed bool, found bool, err error)
	Set(ctx context.Context, key Key, allowed bool) error
	Delete(ctx context.Context, key Key) error
	DeleteUser(ctx context.Context, userID int64) error
	DeleteProject(ctx context.Context, projectID int64) error
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]bool)}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (bool, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	allowed, ok := c.entries[key]
	return allowed, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, allowed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = allowed
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) DeleteUser(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.UserID == userID {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) DeleteProject(_ context.Context, projectID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.ProjectID == projectID {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]bool)
	return nil
}

func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Len returns the number of cached decisions.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
