package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/fetch"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/mutate"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/query"
	"github.com/abelbrown/crmdesk/internal/session"
	"github.com/abelbrown/crmdesk/internal/ui/selectlazy"
)

// pagedLister serves five hotels, paged, from memory.
type pagedLister struct {
	mu      sync.Mutex
	queries []catalog.Query
	fail    bool
}

var hotels = []map[string]any{
	{"id": "1", "name": "Hotel Azul", "phone": "+52 5512345678", "status": 1},
	{"id": "2", "name": "Hotel Rojo", "phone": "", "status": 0},
	{"id": "3", "name": "Hotel Verde", "status": 1},
	{"id": "4", "name": "Hotel Gris", "status": 2},
	{"id": "5", "name": "Hotel Negro", "status": 3},
}

func (l *pagedLister) List(_ context.Context, q catalog.Query) *api.Response {
	l.mu.Lock()
	l.queries = append(l.queries, q)
	fail := l.fail
	l.mu.Unlock()
	if fail {
		return nil
	}

	rows := hotels
	if q.Filter != "" {
		rows = rows[:1]
	}
	off := min(catalog.PageOffset(q.Skip, q.Limit), len(rows))
	end := min(off+q.Limit, len(rows))
	body, _ := json.Marshal(map[string]any{"data": rows[off:end], "total": len(rows)})
	return &api.Response{Status: 200, Body: body}
}

func (l *pagedLister) last() catalog.Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queries) == 0 {
		return catalog.Query{}
	}
	return l.queries[len(l.queries)-1]
}

// fakeMutator records writes and succeeds.
type fakeMutator struct {
	mu          sync.Mutex
	transitions []string
	envelopes   []mutate.Envelope
}

func (f *fakeMutator) Transition(_ context.Context, t mutate.Transition, id string) mutate.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, t.String()+":"+id)
	return mutate.Result{Response: &api.Response{Status: 200}}
}

func (f *fakeMutator) Send(_ context.Context, env mutate.Envelope) mutate.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, env)
	return mutate.Result{Response: &api.Response{Status: 200}}
}

func (f *fakeMutator) IsPending() bool { return false }

type fakeLanguages struct {
	lang    session.Language
	changes []string
}

func (f *fakeLanguages) Language() session.Language { return f.lang }

func (f *fakeLanguages) Context() session.Context {
	return session.Context{Language: f.lang}
}

func (f *fakeLanguages) ChangeLanguage(code string) error {
	lang, err := session.ParseLanguage(code)
	if err != nil {
		return err
	}
	f.lang = lang
	f.changes = append(f.changes, code)
	return nil
}

type fakeNotices struct {
	list []notify.Notice
}

func (f *fakeNotices) Active() []notify.Notice { return f.list }

func (f *fakeNotices) Notify(level notify.Level, text string) {
	f.list = append(f.list, notify.Notice{ID: int64(len(f.list) + 1), Level: level, Text: text, At: time.Now(), TTL: time.Second})
}

type fakeFocus struct{ n int }

func (f fakeFocus) Focus() int { return f.n }

// settle feeds listing notifications to the app until the page is loaded.
func settle(t *testing.T, a App) App {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for a.loading {
		select {
		case msg := <-a.updates:
			m, _ := a.Update(msg)
			a = m.(App)
		case <-deadline:
			t.Fatal("listing never settled")
		}
	}
	return a
}

func press(a App, keys ...tea.KeyMsg) (App, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var m tea.Model
		m, cmd = a.Update(k)
		a = m.(App)
	}
	return a, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type fixture struct {
	lister  *pagedLister
	mutator *fakeMutator
	langs   *fakeLanguages
}

func newFixture() *fixture {
	return &fixture{
		lister:  &pagedLister{},
		mutator: &fakeMutator{},
		langs:   &fakeLanguages{lang: session.English},
	}
}

// start builds an app over a real query cache, sizes it and loads page one.
func (f *fixture) start(t *testing.T, edit func(*AppConfig)) App {
	t.Helper()
	client := query.NewClient(query.Options{})
	t.Cleanup(client.Close)

	cfg := AppConfig{
		Listings:   fetch.New(f.lister, client),
		Focus:      client,
		Mutations:  func(string) Mutator { return f.mutator },
		Languages:  f.langs,
		Translator: i18n.MustLoad().For(f.langs),
		Resources: []Resource{
			{Name: "CATALOGS.HOTEL", Path: "catalogs/hotel"},
			{Name: "CATALOGS.CLIENT", Path: "catalogs/client"},
		},
		PageSize: 2,
	}
	if edit != nil {
		edit(&cfg)
	}
	a := NewAppWithConfig(cfg)
	m, _ := a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = m.Update(subscribeMsg{})
	return settle(t, m.(App))
}

func ids(a App) []string {
	var out []string
	for _, r := range a.Rows() {
		out = append(out, r.ID())
	}
	return out
}

func TestAppInit(t *testing.T) {
	app := NewAppWithConfig(AppConfig{})
	if app.Init() == nil {
		t.Fatal("Init should return a command")
	}
}

func TestAppLoadsFirstPage(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	if got := ids(app); fmt.Sprint(got) != "[1 2]" {
		t.Errorf("rows = %v, want [1 2]", got)
	}
	if app.total != 5 || app.pager.TotalPages != 3 {
		t.Errorf("total %d pages %d", app.total, app.pager.TotalPages)
	}
	q := f.lister.last()
	if q.Resource != "catalogs/hotel" || q.Limit != 2 || q.Skip != 0 {
		t.Errorf("query = %+v", q)
	}
	if !strings.Contains(app.View(), "Hotel Azul") {
		t.Errorf("view missing first row:\n%s", app.View())
	}
}

func TestAppPaging(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	app, _ = press(app, runes("l"))
	app = settle(t, app)
	if app.Page() != 1 || fmt.Sprint(ids(app)) != "[3 4]" {
		t.Fatalf("page %d rows %v", app.Page(), ids(app))
	}
	if f.lister.last().Skip != 1 {
		t.Errorf("skip = %d, want 1", f.lister.last().Skip)
	}

	app, _ = press(app, tea.KeyMsg{Type: tea.KeyRight})
	app = settle(t, app)
	if fmt.Sprint(ids(app)) != "[5]" {
		t.Fatalf("last page rows %v", ids(app))
	}

	// Already on the last page.
	app, _ = press(app, tea.KeyMsg{Type: tea.KeyRight})
	if app.Page() != 2 {
		t.Errorf("paged past the end: %d", app.Page())
	}

	app, _ = press(app, runes("h"))
	app = settle(t, app)
	if app.Page() != 1 {
		t.Errorf("prev page = %d", app.Page())
	}
}

func TestAppTransitionUsesSelectedRow(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	app, _ = press(app, tea.KeyMsg{Type: tea.KeyDown})
	app, cmd := press(app, runes("d"))
	if cmd == nil {
		t.Fatal("d should start a transition")
	}

	// A second action while the first is in flight is ignored.
	_, again := press(app, runes("a"))
	if again != nil {
		t.Error("action accepted while saving")
	}

	done, ok := cmd().(mutationDoneMsg)
	if !ok || done.id != "2" || !done.result.OK() {
		t.Fatalf("done = %+v", done)
	}
	if fmt.Sprint(f.mutator.transitions) != "[deactivate:2]" {
		t.Errorf("transitions = %v", f.mutator.transitions)
	}

	m, _ := app.Update(done)
	if m.(App).saving != "" {
		t.Error("saving flag not cleared")
	}
}

func TestAppSearchAppliesFilter(t *testing.T) {
	f := newFixture()
	app := f.start(t, func(c *AppConfig) {
		c.Features.Search = true
		c.Search = func(string) selectlazy.SearchFunc {
			return func(context.Context, string) ([]selectlazy.Option, error) { return nil, nil }
		}
	})

	app, _ = press(app, runes("l"))
	app = settle(t, app)

	app, _ = press(app, runes("/"))
	if app.overlay != overlaySearch {
		t.Fatal("/ should open the search overlay")
	}

	m, _ := app.Update(selectlazy.ChangedMsg{
		ID:     app.search.ID(),
		Values: []selectlazy.Option{{Value: "1", Label: "Hotel Azul"}},
	})
	app = settle(t, m.(App))

	want := catalog.DynamicQuery(map[string]any{"search": "Hotel Azul"})
	if app.Filter() != want || app.Page() != 0 {
		t.Errorf("filter %q page %d", app.Filter(), app.Page())
	}
	if q := f.lister.last(); q.Filter != want || q.Skip != 0 {
		t.Errorf("query = %+v", q)
	}
	if app.overlay != overlayNone || fmt.Sprint(ids(app)) != "[1]" {
		t.Errorf("overlay %v rows %v", app.overlay, ids(app))
	}

	app, _ = press(app, runes("x"))
	app = settle(t, app)
	if app.Filter() != "" || len(app.Rows()) != 2 {
		t.Errorf("clear left filter %q rows %v", app.Filter(), ids(app))
	}
}

func TestAppSearchDisabledWithoutFeature(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)
	app, _ = press(app, runes("/"))
	if app.overlay != overlayNone {
		t.Error("search opened without the feature flag")
	}
}

func TestAppPhoneFormSends(t *testing.T) {
	f := newFixture()
	notices := &fakeNotices{}
	app := f.start(t, func(c *AppConfig) {
		c.Features.PhoneForm = true
		c.Notices = notices
		c.Translator = i18n.MustLoad().Fixed(session.English)
	})

	app, _ = press(app, runes("p"))
	if app.overlay != overlayPhone || app.phone.Value() != "+52 5512345678" {
		t.Fatalf("overlay %v value %q", app.overlay, app.phone.Value())
	}

	app, cmd := press(app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil || app.saving != "send" {
		t.Fatal("ctrl+s should send")
	}

	var done mutationDoneMsg
	for _, c := range cmd().(tea.BatchMsg) {
		if d, ok := c().(mutationDoneMsg); ok {
			done = d
		}
	}
	if done.action != "send" || done.id != "1" {
		t.Fatalf("done = %+v", done)
	}
	env := f.mutator.envelopes[0]
	if env.TargetID != "1" || env.Values.(map[string]any)["phone"] != "+52 5512345678" {
		t.Errorf("envelope = %+v", env)
	}

	m, _ := app.Update(done)
	if m.(App).overlay != overlayNone {
		t.Error("successful send should close the form")
	}
	if len(notices.list) != 1 || notices.list[0].Text != "Changes saved" {
		t.Errorf("notices = %+v", notices.list)
	}
}

func TestAppPhoneFormReportsFailure(t *testing.T) {
	notices := &fakeNotices{}
	app := NewAppWithConfig(AppConfig{
		Notices:    notices,
		Translator: i18n.MustLoad().Fixed(session.English),
	})
	app.overlay = overlayPhone

	m, _ := app.Update(mutationDoneMsg{action: "send", id: "1", result: mutate.Result{Err: mutate.ErrSoftFailure}})
	if m.(App).overlay != overlayPhone {
		t.Error("failed send should keep the form open")
	}
	if len(notices.list) != 1 || notices.list[0].Level != notify.LevelError {
		t.Errorf("notices = %+v", notices.list)
	}

	notices.list = nil
	app.Update(mutationDoneMsg{action: "send", result: mutate.Result{Err: context.Canceled}})
	if len(notices.list) != 0 {
		t.Errorf("canceled send should be silent: %+v", notices.list)
	}
}

func TestAppPhoneFormValidates(t *testing.T) {
	f := newFixture()
	app := f.start(t, func(c *AppConfig) { c.Features.PhoneForm = true })

	app, _ = press(app, tea.KeyMsg{Type: tea.KeyDown}, runes("p"))
	app, cmd := press(app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil || len(f.mutator.envelopes) != 0 {
		t.Fatal("empty phone was sent")
	}
	if app.phoneErr != "This field is required" {
		t.Errorf("phoneErr = %q", app.phoneErr)
	}
	if !strings.Contains(app.View(), "This field is required") {
		t.Error("view should show the violation")
	}

	app, _ = press(app, tea.KeyMsg{Type: tea.KeyEsc})
	if app.overlay != overlayNone {
		t.Error("esc should close the form")
	}
}

func TestAppLanguageCycle(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	if got := app.table.Rows()[0][4]; got != "Active" {
		t.Fatalf("status cell = %q", got)
	}
	app, _ = press(app, tea.KeyMsg{Type: tea.KeyCtrlL})
	if f.langs.lang != session.Spanish {
		t.Fatalf("language = %s", f.langs.lang)
	}
	if got := app.table.Rows()[0][4]; got != "Activo" {
		t.Errorf("status cell after change = %q", got)
	}
	if !strings.Contains(app.View(), "Idioma") {
		t.Error("header should be translated")
	}
}

func TestAppResourceCycle(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	app, _ = press(app, tea.KeyMsg{Type: tea.KeyTab})
	app = settle(t, app)
	if q := f.lister.last(); q.Resource != "catalogs/client" || q.Skip != 0 {
		t.Errorf("query = %+v", q)
	}
	if !strings.Contains(app.View(), "CATALOGS.CLIENT") {
		t.Error("header should name the new resource")
	}
}

func TestAppJumpAddsResource(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	app, _ = press(app, runes(":"))
	if app.overlay != overlayCommand {
		t.Fatalf("overlay = %v", app.overlay)
	}
	app, _ = press(app, runes("catalogs/region"), tea.KeyMsg{Type: tea.KeyEnter})
	app = settle(t, app)

	if app.overlay != overlayNone {
		t.Error("palette should close after a choice")
	}
	if q := f.lister.last(); q.Resource != "catalogs/region" {
		t.Errorf("query = %+v", q)
	}
	if len(app.cfg.Resources) != 3 || !strings.Contains(app.View(), "CATALOGS.REGION") {
		t.Errorf("resources = %+v", app.cfg.Resources)
	}

	// Jumping to a configured tab reuses it.
	app, _ = press(app, runes(":"), runes("catalogs/hotel"), tea.KeyMsg{Type: tea.KeyEnter})
	app = settle(t, app)
	if app.resource != 0 || len(app.cfg.Resources) != 3 {
		t.Errorf("resource = %d of %d", app.resource, len(app.cfg.Resources))
	}
}

func TestAppJumpRunsAction(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	app, cmd := press(app, runes(":"), runes("quit"), tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("quit action should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit action should quit")
	}
	if app.overlay != overlayNone {
		t.Error("palette should close")
	}
}

func TestAppListingError(t *testing.T) {
	f := newFixture()
	f.lister.fail = true
	app := f.start(t, nil)

	if !errors.Is(app.err, fetch.ErrUnavailable) {
		t.Fatalf("err = %v", app.err)
	}
	if !strings.Contains(app.View(), "Error querying") {
		t.Errorf("view:\n%s", app.View())
	}
}

func TestAppCompactLayout(t *testing.T) {
	f := newFixture()
	app := f.start(t, nil)

	m, _ := app.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	app = m.(App)
	if n := len(app.table.Columns()); n != 3 {
		t.Errorf("compact columns = %d, want 3", n)
	}
	if len(app.table.Rows()[0]) != 3 {
		t.Errorf("compact row = %v", app.table.Rows()[0])
	}
}

func TestAppFocusRefetch(t *testing.T) {
	app := NewAppWithConfig(AppConfig{Focus: fakeFocus{n: 2}})
	_, cmd := app.Update(tea.FocusMsg{})
	if cmd == nil {
		t.Fatal("focus should refetch")
	}
	if done, ok := cmd().(focusDoneMsg); !ok || done.refetched != 2 {
		t.Errorf("msg = %+v", done)
	}
}

func TestAppToasts(t *testing.T) {
	notices := &fakeNotices{}
	notices.Notify(notify.LevelError, "Could not save the changes")
	app := NewAppWithConfig(AppConfig{Notices: notices})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	app = m.(App)

	if !strings.Contains(app.View(), "Could not save the changes") {
		t.Errorf("view missing toast:\n%s", app.View())
	}
	if _, cmd := app.Update(NoticeMsg{Notice: notices.list[0]}); cmd == nil {
		t.Error("notice should schedule its expiry")
	}
}

func TestAppSessionClaims(t *testing.T) {
	app := NewAppWithConfig(AppConfig{Translator: i18n.MustLoad().Fixed(session.English)})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = m.Update(SessionMsg{Claims: session.Claims{Name: "Ana"}})
	if !strings.Contains(m.View(), "Signed in as Ana") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestAppQuit(t *testing.T) {
	app := NewAppWithConfig(AppConfig{})
	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := app.Update(k)
		if cmd == nil {
			t.Fatalf("%s should quit", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not return QuitMsg", k)
		}
	}
}

func TestAppViewNotReady(t *testing.T) {
	app := NewAppWithConfig(AppConfig{})
	if got := app.View(); got != "ui.loading..." {
		t.Errorf("View = %q", got)
	}
}
