// Package cache keeps remote resources fresh under a fixed polling interval.
//
// Each ResourceKey owns one entry holding its QueryState, a recurring
// schedule and a reference count of subscribers. At most one fetch per key
// is outstanding at any instant; a completion is applied only when its
// sequence number is the latest issued for the key.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/pkg/logger"
	"github.com/okian/robodash/pkg/metrics"
)

// Fetcher loads the decoded value of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, key model.ResourceKey) (any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key model.ResourceKey) (any, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, key model.ResourceKey) (any, error) {
	return f(ctx, key)
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries       int `json:"entries"`
	Subscriptions int `json:"subscriptions"`
	InFlight      int `json:"in_flight"`
}

// Cache is the polling engine. The zero value is not usable; call New.
type Cache struct {
	fetcher   Fetcher
	interval  time.Duration
	keepStale bool
	log       logger.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[model.ResourceKey]*entry
	closed  bool
}

// entry is guarded by its own mutex. Lock order is Cache.mu then entry.mu.
type entry struct {
	key model.ResourceKey

	mu       sync.Mutex
	state    model.QueryState[any]
	interval time.Duration
	refs     int
	handles  map[*Handle]struct{}

	seq         uint64 // last issued request
	inFlight    bool
	pending     bool // fetch wanted as soon as the outstanding one returns
	cancelFetch context.CancelFunc
	done        chan struct{}

	sched    uint64 // schedule generation; stale timer callbacks compare against it
	timer    *time.Timer
	teardown *time.Timer
	removed  bool
}

// New creates a Cache backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetcher:   fetcher,
		interval:  DefaultInterval,
		keepStale: true,
		log:       logger.Nop(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[model.ResourceKey]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers interest in key. A new entry starts Loading with an
// immediate fetch. An existing entry is shared along with its schedule; the
// interval of the subscriber that activated the schedule wins. interval <= 0
// selects the cache default.
func (c *Cache) Subscribe(ctx context.Context, key model.ResourceKey, interval time.Duration) *Handle {
	if interval <= 0 {
		interval = c.interval
	}
	h := &Handle{c: c, key: key, ch: make(chan struct{}, 1)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return h
	}

	e, existed := c.entries[key]
	if !existed {
		e = &entry{
			key:      key,
			interval: interval,
			handles:  make(map[*Handle]struct{}),
		}
		e.state.Status = model.StatusLoading
		c.entries[key] = e
		metrics.UpdateCacheEntries(len(c.entries))
		c.log.Debug(ctx, "entry created",
			logger.String("key", key.String()),
			logger.Duration("interval", interval))
	}
	h.e = e

	e.mu.Lock()
	defer e.mu.Unlock()

	e.handles[h] = struct{}{}
	e.refs++
	metrics.AddSubscriptions(string(key.Kind), 1)
	if e.refs > 1 {
		return h
	}

	if e.teardown != nil {
		e.teardown.Stop()
		e.teardown = nil
	}
	if existed {
		e.interval = interval
	}
	c.activate(e)
	return h
}

// activate starts the schedule of an entry going from zero to one
// subscriber. Data younger than the interval is reused and the first poll
// fires one interval after it was fetched. e.mu must be held.
func (c *Cache) activate(e *entry) {
	if e.state.HasData && !e.state.LastFetchedAt.IsZero() {
		if age := c.now().Sub(e.state.LastFetchedAt); age >= 0 && age < e.interval {
			c.schedule(e, e.interval-age)
			return
		}
	}

	if e.inFlight {
		e.pending = true
	} else {
		c.issue(e)
	}
	c.schedule(e, e.interval)
}

// schedule arms the poll timer d from now. e.mu must be held.
func (c *Cache) schedule(e *entry, d time.Duration) {
	e.sched++
	gen := e.sched
	if e.timer != nil {
		e.timer.Stop()
	}
	e.state.NextPollAt = c.now().Add(d)
	e.timer = time.AfterFunc(d, func() { c.tick(e, gen) })
}

func (c *Cache) tick(e *entry, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.sched || e.refs == 0 || e.removed {
		return
	}
	if e.inFlight {
		metrics.RecordTickSkipped(string(e.key.Kind))
		c.log.Debug(c.ctx, "tick skipped, request in flight", logger.String("key", e.key.String()))
	} else {
		c.issue(e)
	}
	c.schedule(e, e.interval)
}

// issue starts a fetch. e.mu must be held and no fetch may be in flight.
func (c *Cache) issue(e *entry) {
	if e.removed {
		return
	}
	e.seq++
	seq := e.seq
	ctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})

	e.inFlight = true
	e.pending = false
	e.cancelFetch = cancel
	e.done = done
	e.state.Fetching = true
	if !e.state.HasData {
		e.state.Status = model.StatusLoading
	}
	e.notify()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		start := time.Now()
		v, err := c.fetcher.Fetch(ctx, e.key)
		cancel()
		c.complete(e, seq, v, err, time.Since(start))
	}()
}

func (c *Cache) complete(e *entry, seq uint64, v any, err error, took time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.inFlight = false
	e.cancelFetch = nil
	e.state.Fetching = false
	kind := string(e.key.Kind)

	if seq != e.seq {
		metrics.RecordResponseDiscarded(kind)
		c.log.Debug(c.ctx, "superseded response discarded",
			logger.String("key", e.key.String()),
			logger.Int64("seq", int64(seq)),
			logger.Int64("latest", int64(e.seq)))
		if e.pending && e.refs > 0 {
			c.issue(e)
			return
		}
		e.notify()
		return
	}

	if err != nil {
		ei := model.AsErrorInfo(err)
		e.state.Err = ei
		switch {
		case !e.state.HasData:
			e.state.Status = model.StatusError
		case c.keepStale:
			e.state.Status = model.StatusSuccess
			e.state.Stale = true
			metrics.RecordStaleServe(kind)
		default:
			e.state.Status = model.StatusError
			e.state.Stale = true
		}
		c.log.Debug(c.ctx, "fetch failed",
			logger.String("key", e.key.String()),
			logger.String("kind", string(ei.Kind)),
			logger.Bool("stale", e.state.Stale),
			logger.Duration("took", took),
			logger.Error(err))
	} else {
		e.state.Status = model.StatusSuccess
		e.state.Data = v
		e.state.HasData = true
		e.state.Err = nil
		e.state.Stale = false
		e.state.LastFetchedAt = c.now()
	}
	e.notify()
}

// release drops h from its entry. At zero subscribers the schedule stops,
// the in-flight request is aborted and its result will be discarded. The
// entry is evicted if it is still unused one interval later.
func (c *Cache) release(h *Handle) {
	e := h.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.handles[h]; !ok {
		return
	}
	delete(e.handles, h)
	e.refs--
	metrics.AddSubscriptions(string(e.key.Kind), -1)
	if e.refs > 0 || e.removed {
		return
	}

	e.sched++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = false
	if e.inFlight {
		e.seq++
		e.cancelFetch()
	}
	e.state.NextPollAt = time.Time{}
	e.teardown = time.AfterFunc(e.interval, func() { c.evict(e) })
}

func (c *Cache) evict(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.refs > 0 || e.removed {
		return
	}
	e.removed = true
	e.teardown = nil
	if c.entries[e.key] == e {
		delete(c.entries, e.key)
	}
	metrics.UpdateCacheEntries(len(c.entries))
	c.log.Debug(c.ctx, "entry evicted", logger.String("key", e.key.String()))
}

// Peek returns the current state of key without subscribing.
func (c *Cache) Peek(key model.ResourceKey) (model.QueryState[any], bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return model.QueryState[any]{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Refresh fetches key now and waits for the result to be applied. It
// returns false without fetching when the key is unknown or a request for
// it is already in flight, and false when ctx ends first.
func (c *Cache) Refresh(ctx context.Context, key model.ResourceKey) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	if e.inFlight || e.removed {
		e.mu.Unlock()
		return false
	}
	c.issue(e)
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stats returns entry, subscription and in-flight counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		e.mu.Lock()
		s.Subscriptions += e.refs
		if e.inFlight {
			s.InFlight++
		}
		e.mu.Unlock()
	}
	return s
}

// Close stops every schedule, aborts outstanding requests and waits for
// their goroutines. Handles keep returning their last state.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for key, e := range c.entries {
		e.mu.Lock()
		e.removed = true
		e.sched++
		if e.timer != nil {
			e.timer.Stop()
		}
		if e.teardown != nil {
			e.teardown.Stop()
		}
		if e.inFlight {
			e.seq++
			e.cancelFetch()
		}
		e.mu.Unlock()
		delete(c.entries, key)
	}
	metrics.UpdateCacheEntries(0)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// notify wakes every handle without blocking. e.mu must be held.
func (e *entry) notify() {
	for h := range e.handles {
		select {
		case h.ch <- struct{}{}:
		default:
		}
	}
}

// As converts an untyped state to a typed view. A value of another type is
// reported as absent data.
func As[T any](s model.QueryState[any]) model.QueryState[T] {
	out := model.QueryState[T]{
		Status:        s.Status,
		Err:           s.Err,
		Stale:         s.Stale,
		Fetching:      s.Fetching,
		LastFetchedAt: s.LastFetchedAt,
		NextPollAt:    s.NextPollAt,
	}
	if v, ok := s.Data.(T); ok && s.HasData {
		out.Data = v
		out.HasData = true
	}
	return out
}
