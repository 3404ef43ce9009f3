package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/otel"
)

// State is a record lifecycle status as the backend stores it.
type State int

const (
	StateInactive   State = 0
	StateActive     State = 1
	StateTerminated State = 2
	StateReopened   State = 3
)

// MessageKey returns the i18n key naming the state.
func (s State) MessageKey() string {
	switch s {
	case StateInactive:
		return "status.inactive"
	case StateTerminated:
		return "status.terminated"
	case StateReopened:
		return "status.reopened"
	default:
		return "status.active"
	}
}

// Writer is the catalog write service. It never retries and never reports:
// the response and error go back to the caller as-is.
type Writer struct {
	client Doer
	diag   *otel.Logger
}

// NewWriter creates a Writer.
func NewWriter(client Doer, diag *otel.Logger) *Writer {
	return &Writer{client: client, diag: diag}
}

// Create POSTs payload to resource. header is merged over the session
// headers, so a caller can send multipart or another content type.
func (w *Writer) Create(ctx context.Context, resource string, payload any, header http.Header) (*api.Response, error) {
	return w.do(ctx, api.Request{Method: http.MethodPost, Path: resource, Body: payload, Header: header})
}

// Update PATCHes payload. See UpdatePath for how the target is addressed.
func (w *Writer) Update(ctx context.Context, resource, id string, payload any, isParamID bool, params string) (*api.Response, error) {
	return w.do(ctx, api.Request{Method: http.MethodPatch, Path: UpdatePath(resource, id, isParamID, params), Body: payload})
}

// SetState PATCHes {"status": n} to resource/id.
func (w *Writer) SetState(ctx context.Context, resource string, status State, id string) (*api.Response, error) {
	return w.do(ctx, api.Request{
		Method: http.MethodPatch,
		Path:   resource + "/" + url.PathEscape(id),
		Body:   map[string]int{"status": int(status)},
	})
}

func (w *Writer) do(ctx context.Context, r api.Request) (*api.Response, error) {
	resp, err := w.client.Do(ctx, r)
	ev := otel.Event{
		Level:  otel.LevelDebug,
		Kind:   otel.KindCatalogWrite,
		Comp:   "catalog",
		Source: r.Path,
		Query:  r.Method,
		Err:    errText(err),
	}
	if resp != nil {
		ev.Status = resp.Status
	}
	w.diag.Emit(ev)
	return resp, err
}

// UpdatePath picks the PATCH target. Explicit params win, then ?id=<id>
// when isParamID, then /<id>.
func UpdatePath(resource, id string, isParamID bool, params string) string {
	switch {
	case params != "":
		if strings.HasPrefix(params, "?") || strings.HasPrefix(params, "/") {
			return resource + params
		}
		return resource + "/" + params
	case isParamID:
		return resource + "?id=" + EscapeComponent(id)
	default:
		return resource + "/" + url.PathEscape(id)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
