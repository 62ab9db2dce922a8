// Package cache implements the retrieval cache: a bounded, TTL-expiring
// mapping from a stable task fingerprint to a previously-accepted output,
// per spec §4.5.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/coregraph/taskgraph/contracts"
)

const defaultMaxEntries = 256

type entry struct {
	fingerprint string
	output      contracts.Mapping
	expiresAt   int64 // unix millis; 0 means no expiry
}

// cache is a bounded LRU keyed by fingerprint with a per-entry TTL. Eviction
// happens both lazily (on Get, for expired entries) and on insert (for the
// least-recently-used entry, once the bound is exceeded).
type cache struct {
	mu         sync.Mutex
	clock      contracts.Clock
	maxEntries int
	ll         *list.List // front = most recently used
	index      map[string]*list.Element
}

// New returns a RetrievalCache with the given clock (for deterministic TTL
// testing) and an initial entry bound. Configure may change the bound later.
func New(clock contracts.Clock) contracts.RetrievalCache {
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	return &cache{
		clock:      clock,
		maxEntries: defaultMaxEntries,
		ll:         list.New(),
		index:      make(map[string]*list.Element),
	}
}

func (c *cache) Configure(maxEntries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c.maxEntries = maxEntries
	c.evictOverflowLocked()
}

func (c *cache) Get(fingerprint string) (contracts.Mapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fingerprint]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if e.expiresAt != 0 && c.clock() >= e.expiresAt {
		c.removeElementLocked(el)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.output, true
}

func (c *cache) Put(fingerprint string, output contracts.Mapping, ttlSeconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt int64
	if ttlSeconds > 0 {
		expiresAt = c.clock() + ttlSeconds*1000
	}

	if el, ok := c.index[fingerprint]; ok {
		e := el.Value.(*entry)
		e.output = output
		e.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{fingerprint: fingerprint, output: output, expiresAt: expiresAt})
	c.index[fingerprint] = el
	c.evictOverflowLocked()
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.index = make(map[string]*list.Element)
}

func (c *cache) evictOverflowLocked() {
	for c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			return
		}
		c.removeElementLocked(oldest)
	}
}

func (c *cache) removeElementLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.index, e.fingerprint)
	c.ll.Remove(el)
}
