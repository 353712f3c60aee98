package server

import (
	"sync"
	"time"

	entdomain "github.com/themeleon/themeleon/internal/entitlement/domain"
)

// quotaCache mirrors anonymous quota-check results for a short TTL. It is a
// best-effort read cache, never a security boundary: the entitlement engine
// still decides every generation.
type quotaCache struct {
	ttl         time.Duration
	mu          sync.RWMutex
	items       map[string]quotaCacheEntry
	subscribers []func(address string)
}

type quotaCacheEntry struct {
	expiresAt time.Time
	decision  entdomain.Decision
}

func newQuotaCache(ttl time.Duration) *quotaCache {
	return &quotaCache{
		ttl:   ttl,
		items: make(map[string]quotaCacheEntry),
	}
}

func (c *quotaCache) Get(address string) (entdomain.Decision, bool) {
	if c == nil || address == "" {
		return entdomain.Decision{}, false
	}
	c.mu.RLock()
	entry, ok := c.items[address]
	c.mu.RUnlock()
	if !ok {
		return entdomain.Decision{}, false
	}
	if time.Now().UTC().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, address)
		c.mu.Unlock()
		return entdomain.Decision{}, false
	}
	return entry.decision, true
}

func (c *quotaCache) Set(address string, decision entdomain.Decision) {
	if c == nil || address == "" {
		return
	}
	c.mu.Lock()
	c.items[address] = quotaCacheEntry{
		expiresAt: time.Now().UTC().Add(c.ttl),
		decision:  decision,
	}
	c.mu.Unlock()
}

// Subscribe registers a callback fired whenever an address is invalidated.
func (c *quotaCache) Subscribe(fn func(address string)) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.mu.Unlock()
}

// Invalidate drops the cached decision after a successful generation so the
// next check reflects the spent allowance.
func (c *quotaCache) Invalidate(address string) {
	if c == nil || address == "" {
		return
	}
	c.mu.Lock()
	delete(c.items, address)
	subscribers := make([]func(string), len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(address)
	}
}
