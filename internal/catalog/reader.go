// Package catalog reads and writes CRM catalog resources.
//
// Reader is the read path: failures are absorbed (a localized notice plus a
// tagged diagnostic) and the caller sees nil. Writer is the write path: it
// returns the raw response and error and leaves reporting to the caller.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/otel"
)

// Doer sends a request. *api.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, r api.Request) (*api.Response, error)
}

var _ Doer = (*api.Client)(nil)

// Reader is the catalog read service.
type Reader struct {
	client   Doer
	notifier notify.Notifier
	tr       i18n.Translator
	diag     *otel.Logger
}

// NewReader creates a Reader. A nil notifier discards notices.
func NewReader(client Doer, notifier notify.Notifier, tr i18n.Translator, diag *otel.Logger) *Reader {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Reader{client: client, notifier: notifier, tr: tr, diag: diag}
}

// List fetches one page of q.Resource. It returns nil on any failure:
//   - cancellation is silent
//   - 401 shows only the session-expired notice
//   - anything else shows "error querying <resource>" and emits a
//     diagnostic tagged ERROR_GET_CATALOG_<RESOURCE>
func (r *Reader) List(ctx context.Context, q Query) *api.Response {
	path := ListPath(q)
	start := time.Now()

	resp, err := r.client.Do(ctx, api.Request{Method: http.MethodGet, Path: path})
	if err == nil && resp.Status != http.StatusOK {
		err = fmt.Errorf("GET %s: unexpected status %d", path, resp.Status)
	}

	if err != nil {
		switch {
		case api.IsCanceled(err) || errors.Is(ctx.Err(), context.Canceled):
			// silent: no notice and no log
		case api.IsUnauthorized(err):
			r.notifier.Notify(notify.LevelError, r.tr.T("auth.errorSessionExpired"))
		default:
			r.notifier.Notify(notify.LevelError, r.tr.Join("auth.errorQuerying", q.Resource))
			r.diag.Diagnostic(otel.KindCatalogError, "catalog", otel.CatalogTag(q.Resource), q.Resource, api.StatusOf(err), err)
			logging.Error("Catalog list failed", "tag", otel.CatalogTag(q.Resource), "error", err)
		}
		return nil
	}

	r.diag.Emit(otel.Event{
		Level:  otel.LevelDebug,
		Kind:   otel.KindCatalogList,
		Comp:   "catalog",
		Source: q.Resource,
		Query:  path,
		Status: resp.Status,
		Dur:    time.Since(start),
	})
	return resp
}

// Row is one catalog record as the backend returns it.
type Row map[string]any

// String returns the value under key formatted for display.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// ID returns the record id as a string.
func (r Row) ID() string { return r.String("id") }

// Status returns the numeric status, defaulting to active.
func (r Row) Status() State {
	if f, ok := r["status"].(float64); ok {
		return State(f)
	}
	return StateActive
}

// Page is a decoded list response.
type Page struct {
	Data  []Row `json:"data"`
	Total int   `json:"total"`
}

// DecodePage reads a list body. Both {"data": [...], "total": n} and a bare
// array are accepted; a bare array's total is its length.
func DecodePage(resp *api.Response) (Page, error) {
	if resp == nil {
		return Page{}, nil
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && body[0] == '[' {
		var rows []Row
		if err := json.Unmarshal(body, &rows); err != nil {
			return Page{}, fmt.Errorf("decode page: %w", err)
		}
		return Page{Data: rows, Total: len(rows)}, nil
	}
	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	if p.Total == 0 {
		p.Total = len(p.Data)
	}
	return p, nil
}
