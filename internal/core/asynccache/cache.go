// Package asynccache is a keyed store of asynchronous results. For each key at
// most one fetch is in flight; every concurrent requester of that key shares
// its outcome.
package asynccache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// Status is the state of one key.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	defaultSize = 4096
	defaultTTL  = 30 * time.Minute
	// minTTL keeps the LRU's expiry ticker interval positive.
	minTTL      = time.Millisecond
)

// ErrTypeMismatch is returned when a key holds a value of another type than requested
var ErrTypeMismatch = errors.New("cached value has unexpected type")

// Key addresses one entry. Kind slices the keyspace so unrelated requests
// never collide.
type Key struct {
	Kind string
	ID   string
}

func (k Key) String() string {
	return k.Kind + ":" + k.ID
}

// Entry is a settled result.
type Entry struct {
	Status    Status
	Value     any
	Err       error
	SettledAt time.Time
}

// Options configures a Cache.
type Options struct {
	// Size bounds the number of settled entries. Zero uses the default.
	Size int
	// TTL expires settled entries. Zero uses the default.
	TTL time.Duration
	// Metrics receives hit/miss/share/failure counts. Nil disables metrics.
	Metrics *Metrics
	// Clock stamps settled entries. Nil uses the real clock.
	Clock clockwork.Clock
}

// flight is one fetch in progress. It runs on its own context and is
// aborted only when every waiter has left.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type Cache struct {
	mu      sync.Mutex
	flights map[Key]*flight
	settled *expirable.LRU[Key, *Entry]
	group   singleflight.Group
	metrics *Metrics
	clock   clockwork.Clock
}

// New creates a Cache. Expired entries are swept by a goroutine that lives
// until the process exits, so a process should share one Cache.
func New(opts Options) *Cache {
	if opts.Size <= 0 {
		opts.Size = defaultSize
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	} else if opts.TTL < minTTL {
		opts.TTL = minTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Cache{
		flights: make(map[Key]*flight),
		settled: expirable.NewLRU[Key, *Entry](opts.Size, nil, opts.TTL),
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
}

// Load returns the value for key, fetching it when no settled value exists.
// Concurrent loads of one key share a single fetch. A caller whose context
// ends before the fetch settles gets ErrCancelled; the fetch keeps running
// for the remaining waiters and is aborted once none are left.
func Load[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	v, err := c.load(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, key, v)
	}
	return typed, nil
}

func (c *Cache) load(ctx context.Context, key Key, fetch func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}

	if v, ok := c.hit(key); ok {
		return v, nil
	}

	c.mu.Lock()
	// Re-check under the lock: a flight may have settled since the fast path.
	if e, ok := c.settled.Get(key); ok && e.Status == StatusSucceeded {
		c.mu.Unlock()
		c.metrics.hit(key.Kind)
		return e.Value, nil
	}

	f, shared := c.flights[key]
	if !shared {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
		c.metrics.miss(key.Kind)
		util.LogDebugf("AsyncCache: miss %s, starting fetch", key)
	} else {
		c.metrics.share(key.Kind)
		util.LogDebugf("AsyncCache: joining in-flight fetch %s (%d waiters)", key, f.waiters)
	}
	f.waiters++

	// DoChan is called under c.mu so a joiner always attaches to the call its
	// flight belongs to: settle needs c.mu before the call can complete.
	ch := c.group.DoChan(key.String(), func() (any, error) {
		v, err := fetch(f.ctx)
		c.settle(key, f, v, err)
		return v, err
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		c.leave(key, f)
		return nil, fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	}
}

func (c *Cache) hit(key Key) (any, bool) {
	e, ok := c.settled.Get(key)
	if !ok || e.Status != StatusSucceeded {
		return nil, false
	}
	c.metrics.hit(key.Kind)
	return e.Value, true
}

// settle records the outcome of f unless f was abandoned by all its waiters.
func (c *Cache) settle(key Key, f *flight, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flights[key] != f {
		// Abandoned: the key was already returned to idle.
		return
	}
	delete(c.flights, key)
	// Later loads must start a new call rather than join this settling one.
	c.group.Forget(key.String())
	defer f.cancel()

	if err != nil {
		if model.IsCancellation(err) || f.ctx.Err() != nil {
			return
		}
		c.settled.Add(key, &Entry{Status: StatusFailed, Err: err, SettledAt: c.clock.Now()})
		c.metrics.failure(key.Kind)
		util.LogDebugf("AsyncCache: fetch %s failed: %v", key, err)
		return
	}
	c.settled.Add(key, &Entry{Status: StatusSucceeded, Value: v, SettledAt: c.clock.Now()})
}

// leave detaches one waiter from f and aborts the fetch when it was the last.
func (c *Cache) leave(key Key, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 || c.flights[key] != f {
		return
	}
	delete(c.flights, key)
	c.group.Forget(key.String())
	f.cancel()
	util.LogDebugf("AsyncCache: last waiter left %s, fetch aborted", key)
}

// Status reports the state of key.
func (c *Cache) Status(key Key) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.flights[key]; ok {
		return StatusLoading
	}
	if e, ok := c.settled.Peek(key); ok {
		return e.Status
	}
	return StatusIdle
}

// Peek returns the settled entry for key without touching its recency.
func (c *Cache) Peek(key Key) (Entry, bool) {
	e, ok := c.settled.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Invalidate drops the settled entry for key. A flight in progress is not
// affected.
func (c *Cache) Invalidate(key Key) {
	c.settled.Remove(key)
}

// Clear drops every settled entry.
func (c *Cache) Clear() {
	c.settled.Purge()
	util.LogDebug("AsyncCache: cleared settled entries")
}

// Len returns the number of settled entries.
func (c *Cache) Len() int {
	return c.settled.Len()
}

// InFlight returns the number of fetches in progress.
func (c *Cache) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flights)
}
