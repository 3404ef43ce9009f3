package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/fetch"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/mutate"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/otel"
	"github.com/abelbrown/crmdesk/internal/query"
	"github.com/abelbrown/crmdesk/internal/rules"
	"github.com/abelbrown/crmdesk/internal/session"
	"github.com/abelbrown/crmdesk/internal/ui/button"
	"github.com/abelbrown/crmdesk/internal/ui/command"
	"github.com/abelbrown/crmdesk/internal/ui/phoneinput"
	"github.com/abelbrown/crmdesk/internal/ui/selectlazy"
)

// compactWidth is the column count below which the shell drops secondary
// columns and shortens the key hints.
const compactWidth = 100

// Listings subscribes to catalog pages. *fetch.Hook satisfies it.
type Listings interface {
	Use(p fetch.Params, onChange func(query.Result)) *query.Observer
}

// Focuser refetches focus-enabled listings. *query.Client satisfies it.
type Focuser interface {
	Focus() int
}

// Mutator is the mutate hook of one resource. *mutate.Manipulator satisfies it.
type Mutator interface {
	Transition(ctx context.Context, t mutate.Transition, id string) mutate.Result
	Send(ctx context.Context, env mutate.Envelope) mutate.Result
	IsPending() bool
}

// Languages reports and switches the UI language. *session.Manager satisfies it.
type Languages interface {
	Language() session.Language
	ChangeLanguage(code string) error
}

// Notices lists live toasts and raises new ones. *notify.Center satisfies it.
type Notices interface {
	Active() []notify.Notice
	Notify(level notify.Level, text string)
}

var (
	_ Listings  = (*fetch.Hook)(nil)
	_ Focuser   = (*query.Client)(nil)
	_ Mutator   = (*mutate.Manipulator)(nil)
	_ Languages = (*session.Manager)(nil)
	_ Notices   = (*notify.Center)(nil)
)

// Resource is one browsable listing.
type Resource struct {
	Name string // registry key, "CATALOGS.HOTEL"
	Path string // "catalogs/hotel"
}

// Column maps a row field to a table column.
type Column struct {
	Title string
	Field string
	Width int
	Wide  bool // hidden in the compact layout
}

// DefaultColumns fit the mock backend's records.
var DefaultColumns = []Column{
	{Title: "ID", Field: "id", Width: 10},
	{Title: "Name", Field: "name", Width: 28},
	{Title: "Phone", Field: "phone", Width: 18, Wide: true},
	{Title: "Email", Field: "email", Width: 26, Wide: true},
	{Title: "Status", Field: "status", Width: 12},
}

// ObsConfig wires diagnostics into the shell.
type ObsConfig struct {
	Ring *otel.RingBuffer
	Diag *otel.Logger
}

// AppConfig holds the shell's collaborators. Nil collaborators disable the
// features that need them.
type AppConfig struct {
	Context    context.Context
	Listings   Listings
	Focus      Focuser
	Mutations  func(resource string) Mutator
	Search     func(resource string) selectlazy.SearchFunc
	Languages  Languages
	Notices    Notices
	Translator i18n.Translator

	Resources []Resource
	Columns   []Column
	PageSize  int

	SearchDebounce  time.Duration
	SearchMinLength int

	Features Features
	Obs      ObsConfig
}

type overlay int

const (
	overlayNone overlay = iota
	overlaySearch
	overlayPhone
	overlayCommand
)

// App is the root Bubble Tea model.
type App struct {
	cfg  AppConfig
	keys keyMap
	help help.Model

	resource int
	filter   string
	obs      *query.Observer
	updates  chan listingMsg

	table   table.Model
	pager   paginator.Model
	rows    []catalog.Row
	total   int
	loading bool
	err     error

	mutator Mutator
	saving  string

	overlay  overlay
	search   selectlazy.Model
	palette  command.Palette
	phone    phoneinput.Model
	save     button.Model
	phoneErr string

	claims       session.Claims
	debugVisible bool
	debugView    viewport.Model

	width  int
	height int
	ready  bool
}

// NewAppWithConfig creates the shell.
func NewAppWithConfig(cfg AppConfig) App {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = catalog.DefaultLimit
	}
	if len(cfg.Columns) == 0 {
		cfg.Columns = DefaultColumns
	}

	pager := paginator.New()
	pager.Type = paginator.Arabic
	pager.PerPage = cfg.PageSize

	a := App{
		cfg:       cfg,
		keys:      defaultKeys(),
		help:      help.New(),
		updates:   make(chan listingMsg, 16),
		pager:     pager,
		debugView: viewport.New(76, 20),
		table: table.New(
			table.WithFocused(true),
			table.WithHeight(cfg.PageSize),
			table.WithStyles(TableStyles()),
		),
	}
	a.table.SetColumns(a.columns())
	a.mutator = a.mutatorFor(a.current().Path)
	return a
}

// Init requests the first page.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return subscribeMsg{} },
		a.waitListing(),
	)
}

func (a App) current() Resource {
	if len(a.cfg.Resources) == 0 {
		return Resource{}
	}
	return a.cfg.Resources[a.resource%len(a.cfg.Resources)]
}

func (a App) mutatorFor(path string) Mutator {
	if a.cfg.Mutations == nil || path == "" {
		return nil
	}
	return a.cfg.Mutations(path)
}

func (a App) params() fetch.Params {
	return fetch.Params{
		Endpoint: a.current().Path,
		Limit:    a.cfg.PageSize,
		Queries:  a.filter,
		Skip:     a.pager.Page,
	}
}

// subscribe observes the listing for the current resource, page and filter.
// The new observer attaches before the old one closes so a shared entry is
// never evicted in between.
func (a *App) subscribe() {
	if a.cfg.Listings == nil || a.current().Path == "" {
		return
	}
	p := a.params()
	key := fetch.KeyFor(p)
	updates := a.updates
	next := a.cfg.Listings.Use(p, func(r query.Result) {
		select {
		case updates <- listingMsg{key: key, result: r}:
		default:
			// The shell re-reads the observer on the next message.
		}
	})
	if a.obs != nil {
		a.obs.Close()
	}
	a.obs = next
	a.apply(next.Result())
}

// Close releases the listing observer.
func (a App) Close() {
	if a.obs != nil {
		a.obs.Close()
	}
}

func (a App) waitListing() tea.Cmd {
	updates := a.updates
	return func() tea.Msg { return <-updates }
}

// apply renders a listing result into the table.
func (a *App) apply(r query.Result) {
	a.loading = r.Fetching || r.Status == query.StatusPending
	a.err = nil
	if r.Status == query.StatusError && !r.Fetching {
		a.err = r.Err
	}
	if r.Data == nil {
		return
	}
	page, err := fetch.Page(r)
	if err != nil {
		a.err = err
		return
	}
	a.rows = page.Data
	a.total = page.Total
	a.pager.SetTotalPages(max(page.Total, 1))
	a.table.SetRows(a.tableRows())
	if a.table.Cursor() >= len(a.rows) {
		a.table.SetCursor(max(len(a.rows)-1, 0))
	}
}

func (a App) compact() bool {
	return a.ready && a.width < compactWidth
}

func (a App) columns() []table.Column {
	var cols []table.Column
	for _, c := range a.cfg.Columns {
		if c.Wide && a.compact() {
			continue
		}
		cols = append(cols, table.Column{Title: c.Title, Width: c.Width})
	}
	return cols
}

func (a App) tableRows() []table.Row {
	tr := a.cfg.Translator
	rows := make([]table.Row, len(a.rows))
	for i, r := range a.rows {
		var cells table.Row
		for _, c := range a.cfg.Columns {
			if c.Wide && a.compact() {
				continue
			}
			if c.Field == "status" {
				cells = append(cells, tr.T(r.Status().MessageKey()))
				continue
			}
			cells = append(cells, r.String(c.Field))
		}
		rows[i] = cells
	}
	return rows
}

// selected returns the highlighted row.
func (a App) selected() (catalog.Row, bool) {
	i := a.table.Cursor()
	if i < 0 || i >= len(a.rows) {
		return nil, false
	}
	return a.rows[i], true
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.cfg.Obs.Diag.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: typeName(msg)})
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.help.Width = msg.Width
		a.table.SetColumns(a.columns())
		a.table.SetRows(a.tableRows())
		a.table.SetHeight(max(min(a.cfg.PageSize, a.height-6), 3))
		a.debugView.Width = min(76, max(msg.Width-4, 20))
		a.debugView.Height = max(msg.Height-debugPanelChrome-2, 1)
		return a, nil

	case tea.FocusMsg:
		if a.cfg.Focus == nil {
			return a, nil
		}
		focus := a.cfg.Focus
		return a, func() tea.Msg { return focusDoneMsg{refetched: focus.Focus()} }

	case focusDoneMsg:
		logging.Debug("Focus refetch", "listings", msg.refetched)
		return a, nil

	case subscribeMsg:
		a.subscribe()
		return a, nil

	case listingMsg:
		if a.obs != nil && msg.key == a.obs.Key() {
			a.apply(a.obs.Result())
		}
		return a, a.waitListing()

	case mutationDoneMsg:
		a.saving = ""
		if msg.action == "send" {
			a.reportSend(msg.result)
		}
		a.save.SetLoading(false)
		return a, a.expireNotices()

	case NoticeMsg:
		return a, a.expireNotices()

	case noticeExpiredMsg:
		return a, nil

	case SessionMsg:
		if msg.Err == nil {
			a.claims = msg.Claims
		}
		return a, nil

	case selectlazy.ChangedMsg:
		return a.applySearchChoice(msg)

	case phoneinput.ChangedMsg:
		a.phoneErr = ""
		return a, nil

	case button.PressedMsg:
		if msg.ID == a.save.ID() {
			return a.submitPhone()
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)
	}

	// Timers and spinner ticks for the overlays.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	cmds = append(cmds, cmd)
	a.save, cmd = a.save.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.debugVisible {
		switch {
		case key.Matches(msg, a.keys.Debug), key.Matches(msg, a.keys.Close):
			a.debugVisible = false
			return a, nil
		}
		var cmd tea.Cmd
		a.debugView, cmd = a.debugView.Update(msg)
		return a, cmd
	}

	switch a.overlay {
	case overlaySearch:
		if key.Matches(msg, a.keys.Close) {
			a.overlay = overlayNone
			a.search.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		return a, cmd

	case overlayPhone:
		return a.handlePhoneKey(msg)

	case overlayCommand:
		var (
			cmd    tea.Cmd
			chosen command.Command
			ok     bool
		)
		a.palette, cmd, chosen, ok = a.palette.Update(msg)
		if !a.palette.IsActive() {
			a.overlay = overlayNone
		}
		if ok {
			return a.runCommand(chosen)
		}
		return a, cmd
	}

	if key.Matches(msg, a.keys.Language) {
		return a.cycleLanguage()
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.PrevPage):
		if a.pager.OnFirstPage() {
			return a, nil
		}
		a.pager.PrevPage()
		a.subscribe()
		return a, nil

	case key.Matches(msg, a.keys.NextPage):
		if a.pager.OnLastPage() {
			return a, nil
		}
		a.pager.NextPage()
		a.subscribe()
		return a, nil

	case key.Matches(msg, a.keys.Activate):
		return a.transition(mutate.Activate)
	case key.Matches(msg, a.keys.Deactivate):
		return a.transition(mutate.Deactivate)
	case key.Matches(msg, a.keys.Terminate):
		return a.transition(mutate.Terminate)
	case key.Matches(msg, a.keys.Reopen):
		return a.transition(mutate.Reopen)

	case key.Matches(msg, a.keys.Refresh):
		return a.refresh()

	case key.Matches(msg, a.keys.Search):
		if !a.cfg.Features.Search || a.cfg.Search == nil {
			return a, nil
		}
		return a.openSearch()

	case key.Matches(msg, a.keys.Clear):
		return a.clearFilter()

	case key.Matches(msg, a.keys.Phone):
		if !a.cfg.Features.PhoneForm {
			return a, nil
		}
		return a.openPhone()

	case key.Matches(msg, a.keys.Resource):
		if len(a.cfg.Resources) < 2 {
			return a, nil
		}
		return a.switchResource((a.resource + 1) % len(a.cfg.Resources))

	case key.Matches(msg, a.keys.Jump):
		return a.openPalette()

	case key.Matches(msg, a.keys.Debug):
		if !a.cfg.Features.Debug {
			return a, nil
		}
		a.debugVisible = true
		a.debugView.SetContent(debugContent(a.cfg.Obs.Ring))
		a.debugView.GotoTop()
		return a, nil
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func (a App) refresh() (tea.Model, tea.Cmd) {
	if a.obs == nil {
		return a, nil
	}
	a.loading = true
	obs, ctx := a.obs, a.cfg.Context
	return a, func() tea.Msg {
		if _, err := obs.Refetch(ctx); err != nil {
			logging.Debug("Refetch failed", "key", obs.Key().String(), "error", err)
		}
		return nil
	}
}

func (a App) clearFilter() (tea.Model, tea.Cmd) {
	if a.filter == "" {
		return a, nil
	}
	a.filter = ""
	a.pager.Page = 0
	a.subscribe()
	return a, nil
}

func (a App) switchResource(i int) (tea.Model, tea.Cmd) {
	a.resource = i
	a.filter = ""
	a.pager.Page = 0
	a.rows = nil
	a.table.SetRows(nil)
	a.mutator = a.mutatorFor(a.current().Path)
	a.subscribe()
	return a, nil
}

// paletteCommands lists the configured resources, then the rest of the
// catalog registry, then the shell actions.
func (a App) paletteCommands() []command.Command {
	var cmds []command.Command
	seen := map[string]bool{}
	for _, r := range a.cfg.Resources {
		seen[r.Path] = true
		cmds = append(cmds, command.Command{Name: r.Name, Description: r.Path, Target: r.Path})
	}
	reg := catalog.Endpoints()
	for _, name := range reg.Namespace("CATALOGS") {
		path := reg.MustPath(name)
		if seen[path] {
			continue
		}
		seen[path] = true
		cmds = append(cmds, command.Command{Name: name, Description: path, Target: path})
	}
	for _, b := range []key.Binding{a.keys.Refresh, a.keys.Clear, a.keys.Language, a.keys.Quit} {
		h := b.Help()
		cmds = append(cmds, command.Command{Name: h.Desc, Key: h.Key, Action: h.Desc})
	}
	return cmds
}

func (a App) openPalette() (tea.Model, tea.Cmd) {
	tr := a.cfg.Translator
	a.palette = command.New(tr.T("ui.jump"), tr.T("ui.noMatches"), a.paletteCommands())
	a.palette.SetWidth(min(max(a.width, 40), 80))
	a.overlay = overlayCommand
	return a, a.palette.Activate()
}

// runCommand jumps to a resource, adding it as a tab when new, or replays
// the action's key.
func (a App) runCommand(c command.Command) (tea.Model, tea.Cmd) {
	a.overlay = overlayNone
	switch c.Action {
	case a.keys.Refresh.Help().Desc:
		return a.refresh()
	case a.keys.Clear.Help().Desc:
		return a.clearFilter()
	case a.keys.Language.Help().Desc:
		return a.cycleLanguage()
	case a.keys.Quit.Help().Desc:
		return a, tea.Quit
	}
	if c.Target == "" {
		return a, nil
	}
	for i, r := range a.cfg.Resources {
		if r.Path == c.Target {
			return a.switchResource(i)
		}
	}
	resources := make([]Resource, len(a.cfg.Resources), len(a.cfg.Resources)+1)
	copy(resources, a.cfg.Resources)
	a.cfg.Resources = append(resources, Resource{Name: c.Name, Path: c.Target})
	return a.switchResource(len(a.cfg.Resources) - 1)
}

// transition runs a state change on the highlighted row.
func (a App) transition(t mutate.Transition) (tea.Model, tea.Cmd) {
	row, ok := a.selected()
	if !ok || a.mutator == nil || a.saving != "" {
		return a, nil
	}
	a.saving = t.String()
	m, ctx, id := a.mutator, a.cfg.Context, row.ID()
	return a, func() tea.Msg {
		return mutationDoneMsg{action: t.String(), id: id, result: m.Transition(ctx, t, id)}
	}
}

func (a App) cycleLanguage() (tea.Model, tea.Cmd) {
	if a.cfg.Languages == nil {
		return a, nil
	}
	cur := a.cfg.Languages.Language()
	next := session.Supported[0]
	for i, l := range session.Supported {
		if l == cur {
			next = session.Supported[(i+1)%len(session.Supported)]
		}
	}
	if err := a.cfg.Languages.ChangeLanguage(string(next)); err != nil {
		logging.Error("Language change failed", "language", next, "error", err)
		return a, nil
	}
	// Status labels are translated at render time.
	a.table.SetRows(a.tableRows())
	return a, nil
}

func (a App) openSearch() (tea.Model, tea.Cmd) {
	a.search = selectlazy.New(selectlazy.Config{
		Search:     a.cfg.Search(a.current().Path),
		Debounce:   a.cfg.SearchDebounce,
		MinLength:  a.cfg.SearchMinLength,
		Context:    a.cfg.Context,
		Translator: a.cfg.Translator,
		Diag:       a.cfg.Obs.Diag,
		Width:      40,
	})
	a.overlay = overlaySearch
	return a, a.search.Focus()
}

// applySearchChoice narrows the listing to the chosen option.
func (a App) applySearchChoice(msg selectlazy.ChangedMsg) (tea.Model, tea.Cmd) {
	if msg.ID != a.search.ID() {
		return a, nil
	}
	a.overlay = overlayNone
	a.search.Blur()
	if len(msg.Values) == 0 {
		return a, nil
	}
	a.filter = catalog.DynamicQuery(map[string]any{"search": msg.Values[0].Label})
	a.pager.Page = 0
	a.subscribe()
	return a, nil
}

func (a App) openPhone() (tea.Model, tea.Cmd) {
	row, ok := a.selected()
	if !ok || a.mutator == nil {
		return a, nil
	}
	a.phone = phoneinput.New(a.cfg.Translator)
	a.phone.SetInitialValue(row.String("phone"))
	a.save = button.New(a.cfg.Translator.T("ui.confirm"), button.Default, button.SizeSmall)
	a.phoneErr = ""
	a.overlay = overlayPhone
	return a, a.phone.Focus()
}

func (a App) handlePhoneKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Close) && !a.phone.Picking():
		a.overlay = overlayNone
		a.phone.Blur()
		return a, nil
	case msg.String() == "ctrl+s":
		return a.submitPhone()
	}

	var cmd tea.Cmd
	if a.save.Focused() {
		if msg.String() == "shift+tab" {
			a.save.Blur()
			return a, a.phone.Focus()
		}
		a.save, cmd = a.save.Update(msg)
		return a, cmd
	}
	if msg.String() == "tab" && !a.phone.Picking() {
		// Number field → save button.
		a.phone.Blur()
		a.save.Focus()
		return a, nil
	}
	a.phone, cmd = a.phone.Update(msg)
	return a, cmd
}

// submitPhone validates the phone and sends it as an update of the
// highlighted row.
func (a App) submitPhone() (tea.Model, tea.Cmd) {
	row, ok := a.selected()
	if !ok || a.mutator == nil || a.saving != "" {
		return a, nil
	}
	value := a.phone.Value()
	if v, bad := rules.RequiredInternationalPhone.First(value); bad {
		a.phoneErr = v.Message(a.cfg.Translator)
		return a, nil
	}

	a.saving = "send"
	spin := a.save.SetLoading(true)
	m, ctx, id := a.mutator, a.cfg.Context, row.ID()
	send := func() tea.Msg {
		res := m.Send(ctx, mutate.Envelope{
			Values:   map[string]any{"phone": value},
			TargetID: id,
		})
		return mutationDoneMsg{action: "send", id: id, result: res}
	}
	return a, tea.Batch(send, spin)
}

// reportSend toasts the outcome of the phone form. Send itself stays quiet
// so every caller picks its own wording.
func (a *App) reportSend(res mutate.Result) {
	if res.OK() {
		a.overlay = overlayNone
		a.phone.Blur()
	}
	if a.cfg.Notices == nil || api.IsCanceled(res.Err) {
		return
	}
	if res.OK() {
		a.cfg.Notices.Notify(notify.LevelSuccess, a.cfg.Translator.T("modals.successSave"))
		return
	}
	a.cfg.Notices.Notify(notify.LevelError, a.cfg.Translator.T("modals.errorSave"))
}

// expireNotices schedules a re-render for when the oldest toast lapses.
func (a App) expireNotices() tea.Cmd {
	if a.cfg.Notices == nil {
		return nil
	}
	active := a.cfg.Notices.Active()
	if len(active) == 0 {
		return nil
	}
	wait := notify.DefaultTTL
	for _, n := range active {
		if left := n.TTL - time.Since(n.At); left > 0 && left < wait {
			wait = left
		}
	}
	return tea.Tick(wait, func(time.Time) tea.Msg { return noticeExpiredMsg{} })
}

// Rows returns the rows on the current page (for testing).
func (a App) Rows() []catalog.Row {
	return a.rows
}

// Filter returns the active listing filter (for testing).
func (a App) Filter() string {
	return a.filter
}

// Page returns the current page index (for testing).
func (a App) Page() int {
	return a.pager.Page
}
