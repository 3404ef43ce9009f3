package coord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/session"
	"github.com/abelbrown/crmdesk/internal/ui"
)

// mockProgram records sent messages.
type mockProgram struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (m *mockProgram) Send(msg tea.Msg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *mockProgram) notices() []notify.Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Notice
	for _, msg := range m.msgs {
		if n, ok := msg.(ui.NoticeMsg); ok {
			out = append(out, n.Notice)
		}
	}
	return out
}

func (m *mockProgram) sessions() []ui.SessionMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ui.SessionMsg
	for _, msg := range m.msgs {
		if s, ok := msg.(ui.SessionMsg); ok {
			out = append(out, s)
		}
	}
	return out
}

// mockSessions returns fixed claims.
type mockSessions struct {
	mu     sync.Mutex
	claims session.Claims
	err    error
}

func (m *mockSessions) Claims() (session.Claims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims, m.err
}

func (m *mockSessions) set(c session.Claims) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = c
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func english() i18n.Translator {
	return i18n.MustLoad().Fixed(session.English)
}

func TestCoordinatorForwardsNotices(t *testing.T) {
	center := notify.NewCenter()
	coord := New(center, nil, english(), Options{})
	program := &mockProgram{}

	ctx, cancel := context.WithCancel(context.Background())
	coord.Start(ctx, program)

	center.Error("Could not save the changes")
	center.Success("Changes saved")

	eventually(t, func() bool { return len(program.notices()) == 2 })
	got := program.notices()
	if got[0].Text != "Could not save the changes" || got[1].Level != notify.LevelSuccess {
		t.Errorf("notices = %+v", got)
	}

	cancel()
	coord.Wait()
}

func TestCoordinatorPublishesClaims(t *testing.T) {
	sessions := &mockSessions{claims: session.Claims{Name: "Ana"}}
	coord := New(nil, sessions, english(), Options{Interval: 10 * time.Millisecond})
	program := &mockProgram{}

	ctx, cancel := context.WithCancel(context.Background())
	coord.Start(ctx, program)

	eventually(t, func() bool { return len(program.sessions()) >= 2 })
	if got := program.sessions()[0]; got.Claims.Name != "Ana" || got.Err != nil {
		t.Errorf("session msg = %+v", got)
	}

	cancel()
	coord.Wait()
}

func TestCoordinatorNoCredential(t *testing.T) {
	sessions := &mockSessions{err: session.ErrNoCredential}
	center := notify.NewCenter()
	coord := New(center, sessions, english(), Options{})
	program := &mockProgram{}

	coord.checkSession(program)

	got := program.sessions()
	if len(got) != 1 || !errors.Is(got[0].Err, session.ErrNoCredential) {
		t.Errorf("session msgs = %+v", got)
	}
	if len(center.Active()) != 0 {
		t.Error("missing credential should not raise a notice")
	}
}

func TestCoordinatorWarnsOnceBeforeExpiry(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	sessions := &mockSessions{claims: session.Claims{Name: "Ana", ExpiresAt: now.Add(3 * time.Minute)}}
	center := notify.NewCenter(notify.WithClock(func() time.Time { return now }))
	coord := New(center, sessions, english(), Options{Now: func() time.Time { return now }})
	program := &mockProgram{}

	coord.checkSession(program)
	coord.checkSession(program)

	active := center.Active()
	if len(active) != 1 {
		t.Fatalf("notices = %+v, want one warning", active)
	}
	if active[0].Level != notify.LevelWarning || active[0].Text != "Session expires in 3m0s" {
		t.Errorf("warning = %+v", active[0])
	}

	// A refreshed token re-arms the warning.
	sessions.set(session.Claims{Name: "Ana", ExpiresAt: now.Add(4 * time.Minute)})
	coord.checkSession(program)
	if n := len(center.Active()); n != 2 {
		t.Errorf("notices after refresh = %d, want 2", n)
	}
}

func TestCoordinatorReportsExpiry(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	sessions := &mockSessions{claims: session.Claims{ExpiresAt: now.Add(-time.Minute)}}
	center := notify.NewCenter(notify.WithClock(func() time.Time { return now }))
	coord := New(center, sessions, english(), Options{Now: func() time.Time { return now }})

	coord.checkSession(&mockProgram{})
	coord.checkSession(&mockProgram{})

	active := center.Active()
	if len(active) != 1 || active[0].Level != notify.LevelError {
		t.Fatalf("notices = %+v", active)
	}
	if active[0].Text != "Your session has expired, please sign in again" {
		t.Errorf("text = %q", active[0].Text)
	}
}

func TestCoordinatorRespectsContextCancellation(t *testing.T) {
	center := notify.NewCenter()
	sessions := &mockSessions{}
	coord := New(center, sessions, english(), Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	coord.Start(ctx, &mockProgram{})
	cancel()

	done := make(chan struct{})
	go func() {
		coord.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}
