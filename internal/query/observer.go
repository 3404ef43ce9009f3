package query

import (
	"context"
	"sync/atomic"
	"time"
)

// ObserverOptions controls how one subscriber drives its entry.
type ObserverOptions struct {
	// Enabled gates fetching. A disabled observer holds the entry but never
	// triggers a request and does not count as active.
	Enabled bool
	// RefetchOnFocus opts the entry into Client.Focus.
	RefetchOnFocus bool
}

// Observer is one subscriber to an entry.
type Observer struct {
	c        *Client
	e        *entry
	opts     ObserverOptions
	onChange func(Result)
	closed   atomic.Bool
}

// Subscribe attaches an observer to key, creating the entry if needed. When
// enabled and the entry is stale, a background fetch starts. onChange is
// called from the fetching goroutine after every settled fetch; it may be nil.
func (c *Client) Subscribe(key Key, fn FetchFunc, opts ObserverOptions, onChange func(Result)) *Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, observers: make(map[*Observer]struct{})}
		c.entries[key] = e
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	if fn != nil {
		e.fn = fn
	}

	o := &Observer{c: c, e: e, opts: opts, onChange: onChange}
	e.observers[o] = struct{}{}

	if opts.Enabled && c.staleLocked(e) {
		c.startLocked(e, false)
	}
	return o
}

// Key returns the observed key.
func (o *Observer) Key() Key {
	return o.e.key
}

// Result returns the current state of the entry.
func (o *Observer) Result() Result {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	return o.c.resultLocked(o.e)
}

// SetEnabled flips the enabled gate. Enabling a stale entry fetches it.
func (o *Observer) SetEnabled(enabled bool) {
	c := o.c
	c.mu.Lock()
	defer c.mu.Unlock()
	o.opts.Enabled = enabled
	if enabled && !o.closed.Load() && c.staleLocked(o.e) {
		c.startLocked(o.e, false)
	}
}

// Refetch forces a new request for the entry and waits for it.
func (o *Observer) Refetch(ctx context.Context) (Result, error) {
	c := o.c
	c.mu.Lock()
	if o.closed.Load() {
		c.mu.Unlock()
		return Result{}, context.Canceled
	}
	h := c.beginLocked(ctx, o.e)
	c.mu.Unlock()

	data, err := c.run(h, o.e.key)
	c.complete(o.e, h, data, err)
	return o.Result(), err
}

// Close detaches the observer. When it was the last one the entry is
// evicted after GCTime, cancelling any fetch still in flight.
func (o *Observer) Close() {
	if o.closed.Swap(true) {
		return
	}
	c := o.c
	c.mu.Lock()
	defer c.mu.Unlock()

	e := o.e
	delete(e.observers, o)
	if len(e.observers) > 0 {
		return
	}
	if c.gcTime <= 0 {
		c.evictLocked(e)
		return
	}
	e.gcTimer = time.AfterFunc(c.gcTime, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(e.observers) == 0 {
			c.evictLocked(e)
		}
	})
}

func (o *Observer) notify(r Result) {
	if o.closed.Load() || o.onChange == nil {
		return
	}
	o.onChange(r)
}
