// Package cache stores decoded transaction actions keyed by transaction hash.
package cache

import (
	"context"
	"sync"
	"time"
)

type memItem struct {
	action  string
	expires time.Time
}

// MemoryCache is an in-process action cache.
type MemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]memItem
	now   func() time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl (0 = never).
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:   ttl,
		items: make(map[string]memItem),
		now:   time.Now,
	}
}

// Get returns the cached action for txHash.
func (c *MemoryCache) Get(_ context.Context, txHash string) (string, bool, error) {
	c.mu.RLock()
	it, ok := c.items[txHash]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !it.expires.IsZero() && c.now().After(it.expires) {
		c.mu.Lock()
		delete(c.items, txHash)
		c.mu.Unlock()
		return "", false, nil
	}
	return it.action, true, nil
}

// Set stores the action for txHash.
func (c *MemoryCache) Set(_ context.Context, txHash, action string) error {
	it := memItem{action: action}
	if c.ttl > 0 {
		it.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[txHash] = it
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
