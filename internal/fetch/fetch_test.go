package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/query"
)

// fakeLister records queries and returns canned bodies.
type fakeLister struct {
	mu      sync.Mutex
	queries []catalog.Query
	body    string
	fail    bool
}

func (f *fakeLister) List(ctx context.Context, q catalog.Query) *api.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.fail {
		return nil
	}
	return &api.Response{Status: 200, Body: []byte(f.body)}
}

func (f *fakeLister) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func wait(t *testing.T, ch <-chan query.Result) query.Result {
	t.Helper()
	for {
		select {
		case r := <-ch:
			if !r.Fetching {
				return r
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out")
			return query.Result{}
		}
	}
}

func TestKeyForDefaults(t *testing.T) {
	k := KeyFor(Params{Endpoint: "catalogs/hotel", Queries: "name=a", Skip: 2})
	want := query.Key{Resource: "catalogs/hotel", Limit: 10, Filter: "name=a", Skip: 2}
	if k != want {
		t.Errorf("KeyFor = %+v, want %+v", k, want)
	}
	if KeyFor(Params{Endpoint: "x", Limit: 10}) != KeyFor(Params{Endpoint: "x"}) {
		t.Error("explicit default limit and zero limit should share a key")
	}
}

func TestUsePassesQueryThrough(t *testing.T) {
	lister := &fakeLister{body: `{"data":[{"id":"1","name":"Azul"}],"total":1}`}
	client := query.NewClient(query.Options{})
	defer client.Close()
	h := New(lister, client)

	ch := make(chan query.Result, 8)
	o := h.Use(Params{Endpoint: "catalogs/hotel", Limit: 5, Skip: 3, Queries: "name=az", DisablePagination: true}, func(r query.Result) { ch <- r })
	defer o.Close()

	r := wait(t, ch)
	page, err := Page(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].String("name") != "Azul" {
		t.Errorf("page = %+v", page)
	}

	got := lister.queries[0]
	want := catalog.Query{Resource: "catalogs/hotel", Limit: 5, Skip: 3, Filter: "name=az", DisablePagination: true}
	if got != want {
		t.Errorf("query = %+v, want %+v", got, want)
	}
}

func TestDisabledDoesNotFetch(t *testing.T) {
	lister := &fakeLister{body: `[]`}
	client := query.NewClient(query.Options{})
	defer client.Close()

	o := New(lister, client).Use(Params{Endpoint: "catalogs/hotel", Disabled: true}, nil)
	defer o.Close()

	time.Sleep(20 * time.Millisecond)
	if lister.count() != 0 {
		t.Error("disabled hook must not fetch")
	}
	if client.Focus() != 0 {
		t.Error("disabled hook must not refetch on focus")
	}
}

func TestFocusOptOut(t *testing.T) {
	lister := &fakeLister{body: `[]`}
	client := query.NewClient(query.Options{StaleTime: -1})
	defer client.Close()
	h := New(lister, client)

	ch := make(chan query.Result, 8)
	o := h.Use(Params{Endpoint: "a", DisableRefetchOnFocus: true}, func(r query.Result) { ch <- r })
	defer o.Close()
	wait(t, ch)

	if client.Focus() != 0 {
		t.Error("focus refetch should be disabled")
	}
}

func TestNilResponseIsUnavailable(t *testing.T) {
	lister := &fakeLister{fail: true}
	client := query.NewClient(query.Options{})
	defer client.Close()

	ch := make(chan query.Result, 8)
	o := New(lister, client).Use(Params{Endpoint: "a"}, func(r query.Result) { ch <- r })
	defer o.Close()

	r := wait(t, ch)
	if !errors.Is(r.Err, ErrUnavailable) || !r.Stale {
		t.Errorf("result = %+v", r)
	}
	if Response(r) != nil {
		t.Error("no response expected")
	}
}

func TestGetSharesCache(t *testing.T) {
	lister := &fakeLister{body: `[]`}
	client := query.NewClient(query.Options{})
	defer client.Close()
	h := New(lister, client)

	ch := make(chan query.Result, 8)
	p := Params{Endpoint: "a"}
	o := h.Use(p, func(r query.Result) { ch <- r })
	defer o.Close()
	wait(t, ch)

	resp, err := h.Get(context.Background(), p)
	if err != nil || resp == nil {
		t.Fatalf("Get = %v, %v", resp, err)
	}
	if lister.count() != 1 {
		t.Errorf("Get should hit the fresh entry, lister called %d times", lister.count())
	}
}

func TestSearchEncodesTerm(t *testing.T) {
	lister := &fakeLister{body: `{"data":[{"id":"1","name":"Hotel Azul"}],"total":1}`}
	client := query.NewClient(query.Options{})
	defer client.Close()
	h := New(lister, client)

	rows, err := h.Search(context.Background(), "catalogs/hotel", "hotel azul", 20)
	if err != nil || len(rows) != 1 || rows[0].String("name") != "Hotel Azul" {
		t.Fatalf("Search = %v, %v", rows, err)
	}
	q := lister.queries[0]
	if q.Filter != "search=hotel%20azul" || q.Limit != 20 {
		t.Errorf("query = %+v", q)
	}

	lister.fail = true
	if _, err := h.Search(context.Background(), "catalogs/hotel", "rojo", 20); !errors.Is(err, ErrUnavailable) {
		t.Errorf("failed search err = %v", err)
	}
}
