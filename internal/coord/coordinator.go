// Package coord bridges background sources into the Bubble Tea program:
// toasts raised by the notification center and the session watcher.
package coord

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/session"
	"github.com/abelbrown/crmdesk/internal/ui"
)

// sessionInterval is the time between session checks.
const sessionInterval = 30 * time.Second

// expiryWarning is how long before the token lapses the user is warned.
const expiryWarning = 5 * time.Minute

// Sender delivers messages to the program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

var _ Sender = (*tea.Program)(nil)

// Notices is the notification center as seen by the bridge.
type Notices interface {
	Subscribe() <-chan notify.Notice
	Unsubscribe(ch <-chan notify.Notice)
	Notify(level notify.Level, text string)
}

var _ Notices = (*notify.Center)(nil)

// Sessions decodes the signed-in user.
type Sessions interface {
	Claims() (session.Claims, error)
}

var _ Sessions = (*session.Manager)(nil)

// Options tunes the watcher. Zero values use the defaults.
type Options struct {
	Interval time.Duration
	Warning  time.Duration
	Now      func() time.Time
}

// Coordinator runs the bridge goroutines.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	notices  Notices
	sessions Sessions
	tr       i18n.Translator
	opts     Options
	wg       sync.WaitGroup

	// Guarded by being touched only from the watcher goroutine.
	lastToken time.Time
	warned    bool
	expired   bool
}

// New creates a Coordinator. Either source may be nil.
func New(notices Notices, sessions Sessions, tr i18n.Translator, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = sessionInterval
	}
	if opts.Warning <= 0 {
		opts.Warning = expiryWarning
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{notices: notices, sessions: sessions, tr: tr, opts: opts}
}

// Start begins forwarding. Call with a cancellable context.
// The session is checked immediately, then every Interval.
func (c *Coordinator) Start(ctx context.Context, program Sender) {
	var g errgroup.Group
	if c.notices != nil {
		ch := c.notices.Subscribe()
		g.Go(func() error {
			c.forward(ctx, ch, program)
			return nil
		})
	}
	if c.sessions != nil {
		g.Go(func() error {
			c.watch(ctx, program)
			return nil
		})
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = g.Wait()
	}()
}

// Wait blocks until the background goroutines exit.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) forward(ctx context.Context, ch <-chan notify.Notice, program Sender) {
	defer c.notices.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			program.Send(ui.NoticeMsg{Notice: n})
		}
	}
}

func (c *Coordinator) watch(ctx context.Context, program Sender) {
	c.checkSession(program)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkSession(program)
		}
	}
}

// checkSession publishes the claims and raises one warning as the token
// nears expiry and one error once it has lapsed. A new token resets both.
func (c *Coordinator) checkSession(program Sender) {
	claims, err := c.sessions.Claims()
	if err != nil && !errors.Is(err, session.ErrNoCredential) {
		logging.Warn("Session decode failed", "error", err)
	}
	program.Send(ui.SessionMsg{Claims: claims, Err: err})
	if err != nil || claims.ExpiresAt.IsZero() {
		return
	}

	if !claims.ExpiresAt.Equal(c.lastToken) {
		c.lastToken = claims.ExpiresAt
		c.warned, c.expired = false, false
	}

	now := c.opts.Now()
	left := claims.ExpiresAt.Sub(now)
	switch {
	case claims.Expired(now):
		if !c.expired {
			c.expired = true
			c.raise(notify.LevelError, c.tr.T("auth.errorSessionExpired"))
		}
	case left <= c.opts.Warning:
		if !c.warned {
			c.warned = true
			c.raise(notify.LevelWarning, c.tr.T("ui.sessionExpiresSoon", left.Round(time.Second).String()))
		}
	}
}

func (c *Coordinator) raise(level notify.Level, text string) {
	if c.notices == nil {
		logging.Warn("Session notice", "text", text)
		return
	}
	c.notices.Notify(level, text)
}
