// Package notify is the toast channel. Services post short localized notices
// here; the TUI subscribes and renders the ones still alive.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/crmdesk/internal/logging"
)

// Level is the visual weight of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Icon returns a display glyph for the level.
func (l Level) Icon() string {
	switch l {
	case LevelSuccess:
		return "✓"
	case LevelError:
		return "✗"
	case LevelWarning:
		return "!"
	default:
		return "·"
	}
}

// Notice is one toast.
type Notice struct {
	ID    int64
	Level Level
	Text  string
	At    time.Time
	TTL   time.Duration
}

// Expired reports whether the notice should no longer be shown at now.
func (n Notice) Expired(now time.Time) bool {
	return n.TTL > 0 && now.Sub(n.At) >= n.TTL
}

// Notifier is what services depend on.
type Notifier interface {
	Notify(level Level, text string)
}

// Defaults.
const (
	DefaultTTL      = 4 * time.Second
	DefaultCapacity = 5
)

// Center keeps the most recent notices and fans them out to subscribers.
type Center struct {
	mu       sync.Mutex
	items    []Notice
	capacity int
	ttl      time.Duration
	now      func() time.Time
	onNotify func(Notice)

	subscribers   []chan Notice
	subscribersMu sync.RWMutex

	nextID  int64
	dropped int64
}

// Option configures a Center.
type Option func(*Center)

// WithTTL sets how long a notice stays visible. Zero keeps notices until
// they are pushed out by newer ones or dismissed.
func WithTTL(d time.Duration) Option {
	return func(c *Center) { c.ttl = d }
}

// WithCapacity bounds the visible queue.
func WithCapacity(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// NewCenter creates a Center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnNotify installs a synchronous hook run for every new notice. The TUI
// uses it to wake its render loop.
func (c *Center) OnNotify(fn func(Notice)) {
	c.mu.Lock()
	c.onNotify = fn
	c.mu.Unlock()
}

// Notify records a notice. Empty text is ignored.
func (c *Center) Notify(level Level, text string) {
	if c == nil || text == "" {
		return
	}
	n := Notice{
		ID:    atomic.AddInt64(&c.nextID, 1),
		Level: level,
		Text:  text,
		At:    c.now(),
		TTL:   c.ttl,
	}

	c.mu.Lock()
	c.items = append(c.items, n)
	if len(c.items) > c.capacity {
		c.items = c.items[len(c.items)-c.capacity:]
	}
	hook := c.onNotify
	c.mu.Unlock()

	switch level {
	case LevelError:
		logging.Warn("Notice", "level", level, "text", text)
	default:
		logging.Debug("Notice", "level", level, "text", text)
	}

	c.broadcast(n)
	if hook != nil {
		hook(n)
	}
}

// Success posts a success notice.
func (c *Center) Success(text string) { c.Notify(LevelSuccess, text) }

// Error posts an error notice.
func (c *Center) Error(text string) { c.Notify(LevelError, text) }

// Warning posts a warning notice.
func (c *Center) Warning(text string) { c.Notify(LevelWarning, text) }

// Info posts an informational notice.
func (c *Center) Info(text string) { c.Notify(LevelInfo, text) }

// Active returns the live notices, oldest first, pruning expired ones.
func (c *Center) Active() []Notice {
	if c == nil {
		return nil
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.items[:0]
	for _, n := range c.items {
		if !n.Expired(now) {
			live = append(live, n)
		}
	}
	c.items = live

	out := make([]Notice, len(live))
	copy(out, live)
	return out
}

// Dismiss removes a notice by id.
func (c *Center) Dismiss(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear drops every visible notice.
func (c *Center) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// Subscribe returns a channel receiving every new notice. Slow subscribers
// lose notices rather than block the sender.
func (c *Center) Subscribe() <-chan Notice {
	ch := make(chan Notice, 32)
	c.subscribersMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (c *Center) Unsubscribe(ch <-chan Notice) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Dropped returns how many notices slow subscribers missed.
func (c *Center) Dropped() int64 {
	return atomic.LoadInt64(&c.dropped)
}

func (c *Center) broadcast(n Notice) {
	c.subscribersMu.RLock()
	defer c.subscribersMu.RUnlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- n:
		default:
			atomic.AddInt64(&c.dropped, 1)
		}
	}
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Notify(Level, string) {}

// Recorder keeps every notice it receives. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	Notices []Notice
}

func (r *Recorder) Notify(level Level, text string) {
	r.mu.Lock()
	r.Notices = append(r.Notices, Notice{Level: level, Text: text})
	r.mu.Unlock()
}

// Texts returns the recorded texts in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Notices))
	for i, n := range r.Notices {
		out[i] = n.Text
	}
	return out
}

// Len returns the number of recorded notices.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Notices)
}
