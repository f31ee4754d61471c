// Package cache is a keyed client-side cache with independent per-key load
// state. Entries never expire; they are refreshed only when marked stale or
// refreshed explicitly.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a single load
const DefaultLoadTimeout = 30 * time.Second

// ErrLoaderPanic wraps a panic raised by a Loader
var ErrLoaderPanic = errors.New("cache loader panicked")

// Loader fetches the value for one key
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Entry is a snapshot of one key's slot
type Entry[V any] struct {
	Value    V
	HasValue bool
	Loading  bool
	// Err is the error of the most recent load; prior data is kept
	Err      error
	Stale    bool
	LoadedAt time.Time
}

type slot[V any] struct {
	Entry[V]
	// gen changes on every local write so an older load does not overwrite it
	gen uint64
}

// Option configures a Cache
type Option func(*options)

type options struct {
	loadTimeout time.Duration
	now         func() time.Time
}

// WithLoadTimeout bounds each load. Loads run detached from the caller's
// context so one caller giving up does not fail a load shared with others.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) { o.loadTimeout = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Cache maps keys to independently loaded values
type Cache[K comparable, V any] struct {
	name  string
	load  Loader[K, V]
	opts  options
	group singleflight.Group

	mu    sync.RWMutex
	slots map[K]*slot[V]
}

// New creates a cache. name labels the cache's metrics.
func New[K comparable, V any](name string, load Loader[K, V], opts ...Option) *Cache[K, V] {
	o := options{loadTimeout: DefaultLoadTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		name:  name,
		load:  load,
		opts:  o,
		slots: make(map[K]*slot[V]),
	}
}

// Get returns the entry for key, loading it on first access or when stale.
// Concurrent calls for one key share a single load. The returned error is
// the load error, or ctx's error if the caller stopped waiting.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (Entry[V], error) {
	c.mu.RLock()
	s, ok := c.slots[key]
	if ok && s.HasValue && !s.Stale {
		e := s.Entry
		c.mu.RUnlock()
		cacheHits.WithLabelValues(c.name).Inc()
		return e, nil
	}
	c.mu.RUnlock()

	cacheMisses.WithLabelValues(c.name).Inc()
	return c.fetch(ctx, key)
}

// Refresh reloads key regardless of its state
func (c *Cache[K, V]) Refresh(ctx context.Context, key K) (Entry[V], error) {
	return c.fetch(ctx, key)
}

// Peek returns the entry without loading
func (c *Cache[K, V]) Peek(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.slots[key]
	if !ok {
		return Entry[V]{}, false
	}
	return s.Entry, true
}

// MarkStale makes the next Get for key reload it
func (c *Cache[K, V]) MarkStale(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key]; ok {
		s.Stale = true
	}
}

// MarkAllStale marks every entry stale
func (c *Cache[K, V]) MarkAllStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		s.Stale = true
	}
}

// Set stores value for key as fresh data
func (c *Cache[K, V]) Set(key K, value V) {
	c.Update(key, func(V, bool) V { return value })
}

// Update merges into the current value. fn receives the current value and
// whether one exists. A load in flight for key will not overwrite the result.
func (c *Cache[K, V]) Update(key K, fn func(current V, ok bool) V) Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slotLocked(key)
	s.Value = fn(s.Value, s.HasValue)
	s.HasValue = true
	s.Err = nil
	s.Stale = false
	s.LoadedAt = c.opts.now()
	s.gen++
	return s.Entry
}

// UpdateLoaded merges into key's value only when one is cached and reports
// whether it did. A key that was never loaded is left to load from the
// source, and a load already in flight for it finishes stale.
func (c *Cache[K, V]) UpdateLoaded(key K, fn func(current V) V) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		return Entry[V]{}, false
	}
	if !s.HasValue {
		s.gen++
		return s.Entry, false
	}
	s.Value = fn(s.Value)
	s.gen++
	return s.Entry, true
}

// Delete removes key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, key)
}

// Keys returns the keys currently held
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, len(c.slots))
	for k := range c.slots {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[K, V]) slotLocked(key K) *slot[V] {
	s, ok := c.slots[key]
	if !ok {
		s = &slot[V]{}
		c.slots[key] = s
	}
	return s
}

func (c *Cache[K, V]) fetch(ctx context.Context, key K) (Entry[V], error) {
	c.mu.Lock()
	s := c.slotLocked(key)
	s.Loading = true
	gen := s.gen
	c.mu.Unlock()

	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		return nil, c.runLoad(context.WithoutCancel(ctx), key, gen)
	})

	select {
	case <-ctx.Done():
		e, _ := c.Peek(key)
		return e, ctx.Err()
	case res := <-ch:
		e, _ := c.Peek(key)
		return e, res.Err
	}
}

// runLoad performs one load and records the outcome in key's slot only
func (c *Cache[K, V]) runLoad(ctx context.Context, key K, gen uint64) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.loadTimeout)
	defer cancel()

	start := c.opts.now()
	var value V
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
			}
		}()
		value, err = c.load(ctx, key)
	}()
	cacheLoadDuration.WithLabelValues(c.name).Observe(c.opts.now().Sub(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slotLocked(key)
	s.Loading = false
	if err != nil {
		cacheLoadErrors.WithLabelValues(c.name).Inc()
		s.Err = err
		return err
	}
	if s.gen != gen && s.HasValue {
		// written locally while loading; keep the local value
		return nil
	}
	s.Value = value
	s.HasValue = true
	s.Err = nil
	// a load that predates a local change is kept but reloads on next Get
	s.Stale = s.gen != gen
	s.LoadedAt = c.opts.now()
	return nil
}
