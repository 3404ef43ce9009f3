// Package query is a small server-state cache in the style of a query client.
//
// Entries are keyed by (resource, limit, filter, skip). An entry is fresh for
// StaleTime after a successful fetch and is evicted GCTime after its last
// observer goes away (immediately by default). Stale entries refetch when an
// observer subscribes, when the terminal regains focus, or when a mutation
// invalidates their resource.
//
// All entry state is guarded by one mutex. Fetches run outside it; each carries
// a generation number so a superseded fetch can never overwrite newer state.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/otel"
)

// Defaults.
const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 0
)

// Key identifies a cache entry. Two descriptors with equal keys share data.
type Key struct {
	Resource string
	Limit    int
	Filter   string
	Skip     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s|%d", k.Resource, k.Limit, k.Filter, k.Skip)
}

// FetchFunc loads the data for one key.
type FetchFunc func(ctx context.Context) (any, error)

// Status summarizes an entry for rendering.
type Status int

const (
	StatusPending Status = iota // nothing loaded yet
	StatusSuccess
	StatusError
)

// Result is an observer's view of its entry.
type Result struct {
	Data      any
	Err       error
	UpdatedAt time.Time
	Status    Status
	Fetching  bool
	Stale     bool
}

// Options configures a Client.
type Options struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Now       func() time.Time
	Diag      *otel.Logger
}

// Client owns the cache.
type Client struct {
	mu      sync.Mutex
	entries map[Key]*entry
	group   singleflight.Group

	staleTime time.Duration
	gcTime    time.Duration
	now       func() time.Time
	diag      *otel.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	key       Key
	fn        FetchFunc
	data      any
	err       error
	updatedAt time.Time
	loaded    bool

	invalidated bool
	fetching    bool
	gen         uint64
	cancel      context.CancelFunc
	done        chan struct{} // closed when the current generation settles

	observers map[*Observer]struct{}
	gcTimer   *time.Timer
}

// NewClient creates a Client. A zero StaleTime means DefaultStaleTime; use a
// negative value for "always stale".
func NewClient(opts Options) *Client {
	c := &Client{
		entries:   make(map[Key]*entry),
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		now:       opts.Now,
		diag:      opts.Diag,
	}
	if c.staleTime == 0 {
		c.staleTime = DefaultStaleTime
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Close cancels every in-flight fetch and waits for them to settle.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Peek returns the current result for key without subscribing.
func (c *Client) Peek(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	return c.resultLocked(e), true
}

func (c *Client) staleLocked(e *entry) bool {
	if e.invalidated || !e.loaded {
		return true
	}
	if c.staleTime < 0 {
		return true
	}
	return c.now().Sub(e.updatedAt) >= c.staleTime
}

func (c *Client) resultLocked(e *entry) Result {
	r := Result{
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Fetching:  e.fetching,
		Stale:     c.staleLocked(e),
	}
	switch {
	case e.err != nil:
		r.Status = StatusError
	case e.loaded:
		r.Status = StatusSuccess
	default:
		r.Status = StatusPending
	}
	return r
}

// active reports whether any enabled observer is attached.
func (e *entry) active() bool {
	for o := range e.observers {
		if o.opts.Enabled {
			return true
		}
	}
	return false
}

// fetchHandle is what begin hands to the goroutine that runs the fetch.
type fetchHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	done   chan struct{}
	fn     FetchFunc
	qid    string
	start  time.Time
}

// beginLocked starts a new generation for e, cancelling any fetch in flight.
func (c *Client) beginLocked(parent context.Context, e *entry) fetchHandle {
	if e.cancel != nil {
		e.cancel()
		c.group.Forget(e.key.String())
	}
	ctx, cancel := context.WithCancel(parent)
	e.gen++
	e.fetching = true
	e.cancel = cancel
	e.done = make(chan struct{})
	return fetchHandle{ctx: ctx, cancel: cancel, gen: e.gen, done: e.done, fn: e.fn, qid: otel.NewQueryID(), start: c.now()}
}

// run executes fn through the singleflight group so concurrent callers of
// the same key share one request.
func (c *Client) run(h fetchHandle, key Key) (any, error) {
	if h.fn == nil {
		return nil, fmt.Errorf("query %s: no fetch function", key)
	}
	ch := c.group.DoChan(key.String(), func() (any, error) {
		return h.fn(h.ctx)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-h.ctx.Done():
		return nil, h.ctx.Err()
	}
}

// complete records a finished fetch unless a newer generation or an
// eviction superseded it.
func (c *Client) complete(e *entry, h fetchHandle, data any, err error) {
	h.cancel()
	defer close(h.done)
	canceled := errors.Is(err, context.Canceled)

	c.mu.Lock()
	if cur, ok := c.entries[e.key]; !ok || cur != e || e.gen != h.gen {
		c.mu.Unlock()
		return
	}
	e.fetching = false
	e.cancel = nil
	switch {
	case canceled:
	case err != nil:
		e.err = err
	default:
		e.data = data
		e.err = nil
		e.loaded = true
		e.updatedAt = c.now()
		e.invalidated = false
	}
	res := c.resultLocked(e)
	observers := e.observerList()
	c.mu.Unlock()

	level := otel.LevelDebug
	if err != nil && !canceled {
		level = otel.LevelWarn
		logging.Warn("Query fetch failed", "key", e.key.String(), "error", err)
	}
	c.diag.Emit(otel.Event{
		Level:   level,
		Kind:    otel.KindQueryFetch,
		Comp:    "query",
		QueryID: h.qid,
		Source:  e.key.Resource,
		Query:   e.key.String(),
		Dur:     c.now().Sub(h.start),
		Err:     errString(err),
	})

	for _, o := range observers {
		o.notify(res)
	}
}

// startLocked launches an async fetch for e unless one is already running.
// It reports whether a fetch was started.
func (c *Client) startLocked(e *entry, force bool) bool {
	if e.fetching && !force {
		return false
	}
	h := c.beginLocked(c.ctx, e)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		data, err := c.run(h, e.key)
		c.complete(e, h, data, err)
	}()
	return true
}

// Fetch returns fresh cached data for key or loads it with fn. It joins a
// fetch already in flight for the same key. The result is cached only when
// an observer holds the entry; that fetch runs on the client's context, so
// a caller giving up never cancels it.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.staleLocked(e) && e.err == nil {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	e, tracked := c.entries[key]
	if !tracked {
		c.mu.Unlock()
		ch := c.group.DoChan(key.String(), func() (any, error) { return fn(ctx) })
		select {
		case r := <-ch:
			return r.Val, r.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.fn == nil {
		e.fn = fn
	}
	var observers []*Observer
	if c.startLocked(e, false) {
		observers = e.observerList()
	}
	res := c.resultLocked(e)
	done := e.done
	c.mu.Unlock()

	for _, o := range observers {
		o.notify(res)
	}
	return c.await(ctx, e, done)
}

// ErrEvicted is returned to a caller waiting on an entry that was dropped
// before its fetch settled.
var ErrEvicted = errors.New("query: entry evicted")

// await waits until e has no fetch in flight, following newer generations,
// and returns the entry's outcome. ctx only bounds the wait.
func (c *Client) await(ctx context.Context, e *entry, done <-chan struct{}) (any, error) {
	for {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		if cur, ok := c.entries[e.key]; !ok || cur != e {
			c.mu.Unlock()
			return nil, ErrEvicted
		}
		if e.fetching {
			done = e.done
			c.mu.Unlock()
			continue
		}
		data, err, loaded := e.data, e.err, e.loaded
		c.mu.Unlock()
		switch {
		case err != nil:
			return nil, err
		case !loaded:
			return nil, context.Canceled
		}
		return data, nil
	}
}

// InvalidateOptions narrows an invalidation.
type InvalidateOptions struct {
	// ActiveOnly limits the invalidation to entries with an enabled observer.
	ActiveOnly bool
}

// Invalidate marks every entry for resource stale and refetches the active
// ones, waiting for the refetches to settle. The first refetch error is
// returned; each entry also records its own outcome. ctx bounds the wait,
// not the refetches.
func (c *Client) Invalidate(ctx context.Context, resource string, opts InvalidateOptions) error {
	type job struct {
		e    *entry
		done chan struct{}
	}

	c.mu.Lock()
	var jobs []job
	marked := 0
	notices := make(map[*Observer]Result)
	for _, e := range c.entries {
		if e.key.Resource != resource {
			continue
		}
		active := e.active()
		if opts.ActiveOnly && !active {
			continue
		}
		e.invalidated = true
		marked++
		if active {
			c.startLocked(e, true)
			jobs = append(jobs, job{e: e, done: e.done})
			res := c.resultLocked(e)
			for _, o := range e.observerList() {
				notices[o] = res
			}
		}
	}
	c.mu.Unlock()

	c.diag.Emit(otel.Event{
		Level:  otel.LevelDebug,
		Kind:   otel.KindQueryInvalidate,
		Comp:   "query",
		Source: resource,
		Count:  marked,
	})
	for o, res := range notices {
		o.notify(res)
	}

	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error {
			_, err := c.await(ctx, j.e, j.done)
			if errors.Is(err, ErrEvicted) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Focus refetches stale entries whose observers opted into focus refetch.
// It returns how many fetches it started.
func (c *Client) Focus() int {
	c.mu.Lock()
	started := 0
	var notices []func()
	for _, e := range c.entries {
		if !c.staleLocked(e) || !wantsFocus(e) {
			continue
		}
		if c.startLocked(e, false) {
			started++
			res := c.resultLocked(e)
			for _, o := range e.observerList() {
				notices = append(notices, func() { o.notify(res) })
			}
		}
	}
	c.mu.Unlock()

	for _, n := range notices {
		n()
	}
	return started
}

func wantsFocus(e *entry) bool {
	for o := range e.observers {
		if o.opts.Enabled && o.opts.RefetchOnFocus {
			return true
		}
	}
	return false
}

func (e *entry) observerList() []*Observer {
	out := make([]*Observer, 0, len(e.observers))
	for o := range e.observers {
		out = append(out, o)
	}
	return out
}

// evictLocked drops e and cancels its fetch.
func (c *Client) evictLocked(e *entry) {
	if cur, ok := c.entries[e.key]; !ok || cur != e {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	delete(c.entries, e.key)
	c.diag.Emit(otel.Event{
		Level:  otel.LevelDebug,
		Kind:   otel.KindQueryEvict,
		Comp:   "query",
		Source: e.key.Resource,
		Query:  e.key.String(),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
