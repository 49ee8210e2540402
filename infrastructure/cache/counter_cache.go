package cache

import (
	"strings"
	"sync"

	"fleamarket/models"
)

// CounterCache caches counters by event and identifier.
type CounterCache struct {
	mu       sync.RWMutex
	counters map[counterKey]models.Counter
}

type counterKey struct {
	eventID    int64
	identifier string
}

func NewCounterCache() *CounterCache {
	return &CounterCache{counters: make(map[counterKey]models.Counter)}
}

func (c *CounterCache) Add(counter models.Counter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[counterKey{counter.EventID, strings.ToUpper(counter.Identifier)}] = counter
}

func (c *CounterCache) Get(eventID int64, identifier string) (models.Counter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counter, ok := c.counters[counterKey{eventID, strings.ToUpper(strings.TrimSpace(identifier))}]
	return counter, ok
}
