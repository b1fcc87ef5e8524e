package memory

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

// Cache - in-memory кеш ответов с TTL
type Cache struct {
	mu       sync.RWMutex
	items    map[string]item
	interval time.Duration
	stopChan chan struct{}
	stopped  bool
}

const DefaultCleanupInterval = 5 * time.Minute

func New() *Cache {
	return NewWithContext(context.Background(), DefaultCleanupInterval)
}

func NewWithContext(ctx context.Context, interval time.Duration) *Cache {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	c := &Cache{
		items:    make(map[string]item),
		interval: interval,
		stopChan: make(chan struct{}),
	}
	go c.cleanup(ctx)
	return c
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	// копия, чтобы вызывающий не мог поменять закешированное
	v := append([]byte(nil), value...)

	c.mu.Lock()
	c.items[key] = item{value: v, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopChan)
	}
	c.mu.Unlock()
}

func (c *Cache) cleanup(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
}
