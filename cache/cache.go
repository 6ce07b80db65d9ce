// Package cache provides an in-memory response cache keyed by request
// fingerprint, with per-key single-flight fetching.
//
// A *Cache[*core.Envelope[*core.Response]] satisfies core.ResponseCache:
//
//	rc := cache.New[*core.Envelope[*core.Response]](cache.Options{
//		MaxEntries: 500,
//		TTL:        10 * time.Minute,
//	})
//	client := core.NewClient(provider, core.WithCache(rc))
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxEntries bounds a cache created without MaxEntries.
const DefaultMaxEntries = 1024

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

// Observer receives cache notifications. Methods are called with the
// cache lock held and must not call back into the cache.
type Observer interface {
	// Hit is called when a lookup is served from a stored entry.
	Hit(key string)
	// Miss is called when a lookup starts a new fetch or finds nothing.
	Miss(key string)
	// Shared is called when a caller joins a fetch already in flight.
	Shared(key string)
	// Evict is called when an entry is dropped for capacity or age.
	Evict(key string, reason EvictReason)
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of stored entries. The least recently
	// inserted entry is evicted first. Zero means DefaultMaxEntries.
	MaxEntries int

	// TTL expires entries lazily on lookup. Zero disables expiry.
	TTL time.Duration

	Observer Observer

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// call is one in-flight fetch shared by every waiter on its key.
type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Cache is a fingerprint → value store with single-flight fetching.
// Cache is safe for concurrent use; one mutex guards both the stored
// entries and the in-flight calls.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  *simplelru.LRU[string, entry[V]]
	calls    map[string]*call[V]
	max      int
	ttl      time.Duration
	observer Observer
	now      func() time.Time
}

// New creates a cache.
func New[V any](opts Options) *Cache[V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	// Size is positive, NewLRU cannot fail.
	entries, _ := simplelru.NewLRU[string, entry[V]](opts.MaxEntries, nil)
	return &Cache[V]{
		entries:  entries,
		calls:    make(map[string]*call[V]),
		max:      opts.MaxEntries,
		ttl:      opts.TTL,
		observer: opts.Observer,
		now:      opts.Now,
	}
}

// Get returns the stored value for key. Lookups do not refresh an
// entry's position in the eviction order.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lookupLocked(key)
	if ok {
		c.observer.Hit(key)
	} else {
		c.observer.Miss(key)
	}
	return v, ok
}

// Put stores value under key, replacing any previous entry.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

// Remove drops the entry for key. It reports whether one was stored.
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Remove(key)
}

// Purge drops every stored entry. In-flight fetches are unaffected.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len returns the number of stored entries, including expired entries
// not yet looked up.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// InFlight returns the number of fetches currently running.
func (c *Cache[V]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// GetOrFetch returns the stored value for key, or runs fetch to produce
// it. Concurrent callers for the same key share one fetch. A successful
// result is stored; an error is returned to every waiter and nothing is
// stored.
//
// fetch runs under a context detached from any single caller. When ctx
// ends the caller stops waiting and gets ctx.Err(); the fetch is
// cancelled only once every waiter has left.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	c.mu.Lock()
	if v, ok := c.lookupLocked(key); ok {
		c.observer.Hit(key)
		c.mu.Unlock()
		return v, nil
	}
	cl, joined := c.calls[key]
	if joined {
		c.observer.Shared(key)
	} else {
		c.observer.Miss(key)
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl = &call[V]{done: make(chan struct{}), cancel: cancel}
		c.calls[key] = cl
		go c.run(fctx, key, cl, fetch)
	}
	cl.waiters++
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		c.leave(key, cl)
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) run(ctx context.Context, key string, cl *call[V], fetch func(context.Context) (V, error)) {
	v, err := fetch(ctx)

	c.mu.Lock()
	cl.val, cl.err = v, err
	if c.calls[key] == cl {
		delete(c.calls, key)
	}
	if err == nil {
		c.putLocked(key, v)
	}
	c.mu.Unlock()

	cl.cancel()
	close(cl.done)
}

// leave detaches one waiter. The last waiter out cancels the fetch and
// unregisters it so later callers start afresh.
func (c *Cache[V]) leave(key string, cl *call[V]) {
	c.mu.Lock()
	cl.waiters--
	last := cl.waiters == 0
	if last && c.calls[key] == cl {
		delete(c.calls, key)
	}
	c.mu.Unlock()

	if last {
		cl.cancel()
	}
}

func (c *Cache[V]) lookupLocked(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Peek(key)
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.insertedAt) >= c.ttl {
		c.entries.Remove(key)
		c.observer.Evict(key, EvictExpired)
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) putLocked(key string, value V) {
	if !c.entries.Contains(key) && c.entries.Len() >= c.max {
		if oldest, _, ok := c.entries.RemoveOldest(); ok {
			c.observer.Evict(oldest, EvictCapacity)
		}
	}
	c.entries.Add(key, entry[V]{value: value, insertedAt: c.now()})
}

type nopObserver struct{}

func (nopObserver) Hit(string)                {}
func (nopObserver) Miss(string)               {}
func (nopObserver) Shared(string)             {}
func (nopObserver) Evict(string, EvictReason) {}
