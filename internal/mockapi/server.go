// Package mockapi is a development REST backend over store records. It
// follows the catalog endpoint conventions so the desk and crmctl can run
// without the real service.
package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/store"
)

// Options configures a Server.
type Options struct {
	// Token, when set, must arrive as "Authorization: Bearer <token>".
	Token string
	// Latency delays every API response.
	Latency time.Duration
	// Resources limits the served paths. Empty serves every registry path.
	Resources []string
}

// Server serves records over HTTP.
type Server struct {
	store     *store.Store
	opts      Options
	resources map[string]bool
	log       *log.Logger
	router    *mux.Router
}

// New creates a Server over s.
func New(s *store.Store, opts Options) *Server {
	srv := &Server{
		store:     s,
		opts:      opts,
		resources: make(map[string]bool),
		log:       logging.WithPrefix("mockapi"),
	}
	if len(opts.Resources) == 0 {
		reg := catalog.Endpoints()
		for _, name := range reg.Names() {
			opts.Resources = append(opts.Resources, reg.MustPath(name))
		}
	}
	for _, p := range opts.Resources {
		srv.resources[strings.Trim(p, "/")] = true
	}
	srv.router = srv.routes()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.logRequests, s.authenticate, s.delay)
	api.MatcherFunc(s.collection).Methods(http.MethodGet).HandlerFunc(s.list)
	api.MatcherFunc(s.collection).Methods(http.MethodPost).HandlerFunc(s.create)
	api.MatcherFunc(s.collection).Methods(http.MethodPatch).Queries("id", "{id}").HandlerFunc(s.update)
	api.MatcherFunc(s.member).Methods(http.MethodGet).HandlerFunc(s.get)
	api.MatcherFunc(s.member).Methods(http.MethodPatch).HandlerFunc(s.update)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown resource")
	})
	return r
}

// collection matches a served resource path.
func (s *Server) collection(r *http.Request, _ *mux.RouteMatch) bool {
	return s.resources[strings.Trim(r.URL.Path, "/")]
}

// member matches <resource>/<id>.
func (s *Server) member(r *http.Request, _ *mux.RouteMatch) bool {
	resource, id := splitMember(r.URL.Path)
	return id != "" && s.resources[resource]
}

func splitMember(p string) (resource, id string) {
	p = strings.Trim(p, "/")
	dir, last := path.Split(p)
	return strings.TrimSuffix(dir, "/"), last
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.RequestURI(), "status", rec.status, "dur", time.Since(start))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	if s.opts.Latency <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.opts.Latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

// list serves GET <resource>?limit&skip&search&<field>=<value>. Empty
// filter values are ignored.
func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Resource: strings.Trim(r.URL.Path, "/"),
		Search:   q.Get("search"),
		Where:    map[string]string{},
	}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "bad limit")
		return
	}
	if opts.Offset, err = intParam(q.Get("skip")); err != nil {
		writeError(w, http.StatusBadRequest, "bad skip")
		return
	}
	for k, vs := range q {
		switch k {
		case "limit", "skip", "search":
			continue
		}
		if len(vs) > 0 && vs[0] != "" {
			opts.Where[k] = vs[0]
		}
	}

	recs, total, err := s.store.ListRecords(opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": recs, "total": total})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	resource, id := splitMember(r.URL.Path)
	rec, err := s.store.GetRecord(resource, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	rec, err := s.store.InsertRecord(strings.Trim(r.URL.Path, "/"), body)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// update serves PATCH <resource>/<id> and PATCH <resource>?id=<id>. A body
// holding only "status" is a state change.
func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	resource, id := splitMember(r.URL.Path)
	if v, ok := mux.Vars(r)["id"]; ok {
		resource, id = strings.Trim(r.URL.Path, "/"), v
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	if status, only := statusOnly(body); only {
		if err := s.store.SetStatus(resource, id, status); err != nil {
			s.storeError(w, err)
			return
		}
		rec, err := s.store.GetRecord(resource, id)
		if err != nil {
			s.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	rec, err := s.store.UpdateRecord(resource, id, body)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func statusOnly(body map[string]any) (int, bool) {
	if len(body) != 1 {
		return 0, false
	}
	n, ok := body["status"].(float64)
	return int(n), ok
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error("store failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return body, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("bad integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
