// Package fetch binds the catalog read service to the query cache.
//
// A Hook turns list parameters into a cache key and an observer. Results stay
// fresh for the cache's stale time, are evicted when the last observer closes,
// and refetch on terminal focus unless the caller opts out. The hook only
// reads; writes go through package mutate.
package fetch

import (
	"context"
	"errors"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/query"
)

// ErrUnavailable is recorded when the read service absorbed a failure and
// returned nothing. The entry stays stale so the next focus or
// subscription retries it.
var ErrUnavailable = errors.New("fetch: no data")

// Lister is the read service. *catalog.Reader satisfies it.
type Lister interface {
	List(ctx context.Context, q catalog.Query) *api.Response
}

var _ Lister = (*catalog.Reader)(nil)

// Params are the list parameters of one hook call.
type Params struct {
	Endpoint              string
	Limit                 int // zero means catalog.DefaultLimit
	Queries               string
	Skip                  int // page index
	DisableRefetchOnFocus bool
	Disabled              bool
	DisablePagination     bool
}

func (p Params) limit() int {
	if p.Limit <= 0 {
		return catalog.DefaultLimit
	}
	return p.Limit
}

// KeyFor returns the cache key for p. Skip is the raw page index, so two
// pages of the same listing never share an entry.
func KeyFor(p Params) query.Key {
	return query.Key{Resource: p.Endpoint, Limit: p.limit(), Filter: p.Queries, Skip: p.Skip}
}

// Hook is the fetch hook.
type Hook struct {
	reader Lister
	client *query.Client
}

// New creates a Hook.
func New(reader Lister, client *query.Client) *Hook {
	return &Hook{reader: reader, client: client}
}

// Use subscribes to the listing described by p. The caller must Close the
// returned observer when it stops rendering the data.
func (h *Hook) Use(p Params, onChange func(query.Result)) *query.Observer {
	return h.client.Subscribe(KeyFor(p), h.loader(p), query.ObserverOptions{
		Enabled:        !p.Disabled,
		RefetchOnFocus: !p.DisableRefetchOnFocus,
	}, onChange)
}

// Get loads p once through the cache without subscribing.
func (h *Hook) Get(ctx context.Context, p Params) (*api.Response, error) {
	v, err := h.client.Fetch(ctx, KeyFor(p), h.loader(p))
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*api.Response)
	return resp, nil
}

// Search looks up the first limit rows of endpoint whose label contains
// term. Concurrent lookups of the same term share one request.
func (h *Hook) Search(ctx context.Context, endpoint, term string, limit int) ([]catalog.Row, error) {
	resp, err := h.Get(ctx, Params{
		Endpoint: endpoint,
		Limit:    limit,
		Queries:  catalog.DynamicQuery(map[string]any{"search": term}),
	})
	if err != nil {
		return nil, err
	}
	page, err := catalog.DecodePage(resp)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (h *Hook) loader(p Params) query.FetchFunc {
	q := catalog.Query{
		Resource:          p.Endpoint,
		Limit:             p.limit(),
		Skip:              p.Skip,
		Filter:            p.Queries,
		DisablePagination: p.DisablePagination,
	}
	return func(ctx context.Context) (any, error) {
		resp := h.reader.List(ctx, q)
		if resp == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, ErrUnavailable
		}
		return resp, nil
	}
}

// Response extracts the response from a result, or nil.
func Response(r query.Result) *api.Response {
	resp, _ := r.Data.(*api.Response)
	return resp
}

// Page decodes the result's response into a catalog page.
func Page(r query.Result) (catalog.Page, error) {
	return catalog.DecodePage(Response(r))
}
