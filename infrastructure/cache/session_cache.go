package cache

import (
	"sync"

	"fleamarket/models"
)

// ClerkSessionCache stores clerk sessions by token.
type ClerkSessionCache struct {
	mu       sync.RWMutex
	sessions map[string]models.ClerkSession
}

func NewClerkSessionCache() *ClerkSessionCache {
	return &ClerkSessionCache{sessions: make(map[string]models.ClerkSession)}
}

func (c *ClerkSessionCache) Put(s models.ClerkSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = s
}

func (c *ClerkSessionCache) Get(token string) (models.ClerkSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[token]
	return s, ok
}

func (c *ClerkSessionCache) Delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
}

