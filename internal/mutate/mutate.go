// Package mutate wraps the catalog write service with cache invalidation,
// toasts and diagnostics.
//
// Every operation returns a Result value. A transport or HTTP error is passed
// through in Result.Err; a 2xx response other than the expected one is a soft
// failure reported as ErrSoftFailure.
package mutate

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/otel"
	"github.com/abelbrown/crmdesk/internal/query"
)

// ErrSoftFailure marks a request that completed without an error but with a
// status the operation does not accept.
var ErrSoftFailure = errors.New("mutate: unexpected response status")

// Transition is one of the four fixed lifecycle changes.
type Transition int

const (
	Activate Transition = iota
	Deactivate
	Terminate
	Reopen
)

// State returns the status code the backend stores for t.
func (t Transition) State() catalog.State {
	switch t {
	case Deactivate:
		return catalog.StateInactive
	case Terminate:
		return catalog.StateTerminated
	case Reopen:
		return catalog.StateReopened
	default:
		return catalog.StateActive
	}
}

func (t Transition) String() string {
	switch t {
	case Deactivate:
		return "deactivate"
	case Terminate:
		return "terminate"
	case Reopen:
		return "reopen"
	default:
		return "activate"
	}
}

// ErrUnknownTransition is returned by ParseTransition.
var ErrUnknownTransition = errors.New("mutate: unknown transition")

// ParseTransition maps a String() name back to its Transition.
func ParseTransition(s string) (Transition, error) {
	for _, t := range []Transition{Activate, Deactivate, Terminate, Reopen} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, ErrUnknownTransition
}

// Writer is the catalog write service. *catalog.Writer satisfies it.
type Writer interface {
	Create(ctx context.Context, resource string, payload any, header http.Header) (*api.Response, error)
	Update(ctx context.Context, resource, id string, payload any, isParamID bool, params string) (*api.Response, error)
	SetState(ctx context.Context, resource string, status catalog.State, id string) (*api.Response, error)
}

var _ Writer = (*catalog.Writer)(nil)

// Invalidator refreshes cached reads. *query.Client satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, resource string, opts query.InvalidateOptions) error
}

var _ Invalidator = (*query.Client)(nil)

// Options configure a Manipulator.
type Options struct {
	Endpoint string
	// InvalidQuery overrides the resource whose cached reads are refreshed.
	InvalidQuery string
	// DisableInvalidation skips cache refreshes after a write.
	DisableInvalidation bool
}

// Envelope is one create-or-update request.
type Envelope struct {
	Values         any
	TargetID       string // set for updates
	PostValidation bool   // update even without a TargetID
	IsParamID      bool   // address the target as ?id= instead of /id
	Params         string // explicit path suffix, wins over both
	InvalidQuery   string // per-call invalidation override
	Header         http.Header
}

// IsUpdate reports whether the envelope is sent as a PATCH.
func (e Envelope) IsUpdate() bool {
	return e.PostValidation || e.TargetID != ""
}

// Result is the settled outcome of a mutation.
type Result struct {
	Response *api.Response
	Err      error
}

// OK reports success.
func (r Result) OK() bool {
	return r.Err == nil
}

// Soft reports a soft failure.
func (r Result) Soft() bool {
	return errors.Is(r.Err, ErrSoftFailure)
}

// Manipulator is the mutate hook for one endpoint.
type Manipulator struct {
	opts     Options
	writer   Writer
	cache    Invalidator
	notifier notify.Notifier
	tr       i18n.Translator
	diag     *otel.Logger

	pendingState  atomic.Int32
	pendingCreate atomic.Int32
	pendingUpdate atomic.Int32
}

// New creates a Manipulator. cache and notifier may be nil.
func New(opts Options, writer Writer, cache Invalidator, notifier notify.Notifier, tr i18n.Translator, diag *otel.Logger) *Manipulator {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Manipulator{opts: opts, writer: writer, cache: cache, notifier: notifier, tr: tr, diag: diag}
}

// Endpoint returns the resource the manipulator writes to.
func (m *Manipulator) Endpoint() string {
	return m.opts.Endpoint
}

// IsPending reports whether any state, create or update request is in flight.
func (m *Manipulator) IsPending() bool {
	return m.pendingState.Load() > 0 || m.pendingCreate.Load() > 0 || m.pendingUpdate.Load() > 0
}

// Activate sets the record's status to active.
func (m *Manipulator) Activate(ctx context.Context, id string) Result {
	return m.Transition(ctx, Activate, id)
}

// Deactivate sets the record's status to inactive.
func (m *Manipulator) Deactivate(ctx context.Context, id string) Result {
	return m.Transition(ctx, Deactivate, id)
}

// Terminate closes the record.
func (m *Manipulator) Terminate(ctx context.Context, id string) Result {
	return m.Transition(ctx, Terminate, id)
}

// Reopen reopens a terminated record.
func (m *Manipulator) Reopen(ctx context.Context, id string) Result {
	return m.Transition(ctx, Reopen, id)
}

// Transition applies t to id. Success needs a 200; anything else toasts the
// failure message. Cached reads are refreshed either way unless the request
// itself failed.
func (m *Manipulator) Transition(ctx context.Context, t Transition, id string) Result {
	m.pendingState.Add(1)
	defer m.pendingState.Add(-1)

	resp, err := m.writer.SetState(ctx, m.opts.Endpoint, t.State(), id)
	if err != nil {
		if !api.IsCanceled(err) {
			logging.Error("State change failed", "endpoint", m.opts.Endpoint, "transition", t, "id", id, "error", err)
			m.diag.Diagnostic(otel.KindMutateError, "mutate", "", m.opts.Endpoint, api.StatusOf(err), err)
			m.notifier.Notify(notify.LevelError, m.tr.T("modals.errorSave"))
		}
		return Result{Err: err}
	}

	m.invalidate(ctx, m.opts.InvalidQuery)

	if resp.Status != http.StatusOK {
		m.notifier.Notify(notify.LevelError, m.tr.T("modals.errorSave"))
		m.diag.Diagnostic(otel.KindMutateError, "mutate", "", m.opts.Endpoint, resp.Status, ErrSoftFailure)
		return Result{Response: resp, Err: ErrSoftFailure}
	}

	m.notifier.Notify(notify.LevelSuccess, m.tr.T("modals.successSave"))
	m.diag.Emit(otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindMutateState,
		Comp:   "mutate",
		Source: m.opts.Endpoint,
		Status: resp.Status,
		Msg:    t.String() + " " + id,
	})
	return Result{Response: resp}
}

// Send creates or updates a record. 200 and 201 are successes and refresh
// the cache under the envelope's key, else the hook's, else the endpoint.
func (m *Manipulator) Send(ctx context.Context, env Envelope) Result {
	var (
		resp   *api.Response
		err    error
		method = http.MethodPost
	)
	// The channel stays pending until the invalidation refetch settles.
	if env.IsUpdate() {
		method = http.MethodPatch
		m.pendingUpdate.Add(1)
		defer m.pendingUpdate.Add(-1)
		resp, err = m.writer.Update(ctx, m.opts.Endpoint, env.TargetID, env.Values, env.IsParamID, env.Params)
	} else {
		m.pendingCreate.Add(1)
		defer m.pendingCreate.Add(-1)
		resp, err = m.writer.Create(ctx, m.opts.Endpoint, env.Values, env.Header)
	}

	if err != nil {
		tag := otel.SendTag(method, m.opts.Endpoint)
		if !api.IsCanceled(err) {
			logging.Error("Send failed", "tag", tag, "error", err)
			m.diag.Diagnostic(otel.KindMutateError, "mutate", tag, m.opts.Endpoint, api.StatusOf(err), err)
		}
		return Result{Err: err}
	}

	if resp.Status != http.StatusOK && resp.Status != http.StatusCreated {
		return Result{Response: resp, Err: ErrSoftFailure}
	}

	key := env.InvalidQuery
	if key == "" {
		key = m.opts.InvalidQuery
	}
	m.invalidate(ctx, key)

	m.diag.Emit(otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindMutateSend,
		Comp:   "mutate",
		Source: m.opts.Endpoint,
		Query:  method,
		Status: resp.Status,
	})
	return Result{Response: resp}
}

// invalidate refreshes the active reads under key, or the endpoint when key
// is empty, and waits for them.
func (m *Manipulator) invalidate(ctx context.Context, key string) {
	if m.opts.DisableInvalidation || m.cache == nil {
		return
	}
	if key == "" {
		key = m.opts.InvalidQuery
	}
	if key == "" {
		key = m.opts.Endpoint
	}
	if err := m.cache.Invalidate(ctx, key, query.InvalidateOptions{ActiveOnly: true}); err != nil {
		logging.Debug("Invalidation refetch failed", "key", key, "error", err)
	}
}
