package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     CachedToken
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() TokenCache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, payeeCode string) (*CachedToken, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[payeeCode]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false, nil
	}

	token := entry.token
	return &token, true, nil
}

func (c *memoryCache) Set(_ context.Context, payeeCode string, token *CachedToken, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[payeeCode] = memoryEntry{
		token:     *token,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, payeeCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, payeeCode)
	return nil
}
