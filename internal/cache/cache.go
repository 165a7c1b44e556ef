// Package cache holds recently fetched payloads so repeated requests for the
// same URL inside the freshness window never touch the target. Entries
// expire by TTL and the cache evicts in insertion order once full.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Config controls capacity and freshness.
type Config struct {
	// Capacity is the maximum number of entries held.
	Capacity int
	// TTL is the default freshness window for new entries.
	TTL time.Duration
	// SweepInterval enables background removal of expired entries when
	// positive. Expired entries are dropped at read time either way; the
	// sweep only bounds memory between reads.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 50
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	return c
}

type entry struct {
	key       string
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a TTL cache with insertion-order eviction. All methods are safe
// for concurrent use.
type Cache struct {
	mu    sync.Mutex
	cfg   Config
	clock Clock

	order   *list.List // oldest insertion at the front
	entries map[string]*list.Element

	stop chan struct{}
	done chan struct{}
}

// New constructs a Cache. When SweepInterval is positive a background sweep
// runs until Close is called.
func New(cfg Config, clock Clock) *Cache {
	c := &Cache{
		cfg:     cfg.withDefaults(),
		clock:   clock,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
	if cfg.SweepInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.sweepLoop(cfg.SweepInterval)
	}
	return c
}

// Get returns the payload for key if present and fresh. An expired entry is
// removed on the spot and reported as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if !c.clock.Now().Before(ent.expiresAt) {
		c.removeLocked(el)
		return nil, false
	}
	return ent.payload, true
}

// Put stores payload under key with the default TTL. Writing an existing key
// replaces its payload and restarts its lifetime, so the entry moves to the
// back of the eviction order. The last concurrent writer wins.
func (c *Cache) Put(key string, payload []byte) {
	c.PutTTL(key, payload, c.cfg.TTL)
}

// PutTTL stores payload under key with an explicit TTL.
func (c *Cache) PutTTL(key string, payload []byte, ttl time.Duration) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.payload = payload
		ent.createdAt = now
		ent.expiresAt = now.Add(ttl)
		c.order.MoveToBack(el)
		return
	}

	if c.order.Len() >= c.cfg.Capacity {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest)
		}
	}
	el := c.order.PushBack(&entry{
		key:       key,
		payload:   payload,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	c.entries[key] = el
}

// Len reports the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry. Used by the resource guard under memory pressure.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Sweep removes all expired entries now and reports how many were dropped.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped int
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeLocked(el)
			dropped++
		}
		el = next
	}
	return dropped
}

// Close stops the background sweep, if any.
func (c *Cache) Close() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
}

func (c *Cache) removeLocked(el *list.Element) {
	ent := c.order.Remove(el).(*entry)
	delete(c.entries, ent.key)
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}
