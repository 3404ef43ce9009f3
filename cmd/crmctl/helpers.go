package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/config"
	"github.com/abelbrown/crmdesk/internal/fetch"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/mutate"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/query"
	"github.com/abelbrown/crmdesk/internal/session"
	"github.com/abelbrown/crmdesk/internal/store"
)

// services is the wiring every subcommand shares.
type services struct {
	cfg      *config.Config
	store    *store.Store
	sessions *session.Manager
	tr       i18n.Translator
	client   *api.Client
	notices  *notify.Center
	cache    *query.Client
	reader   *catalog.Reader
	writer   *catalog.Writer
	hook     *fetch.Hook
}

// tokenOverride lets CRMDESK_TOKEN win over the stored credential without
// persisting it.
type tokenOverride struct {
	session.Provider
	token string
}

func (t tokenOverride) Context() session.Context {
	sc := t.Provider.Context()
	if t.token != "" {
		sc.Token = t.token
	}
	return sc
}

// openServices loads config, opens the pref store and builds the clients.
// Notices print to stderr as they are raised.
func openServices() *services {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	logging.InitWriter(os.Stderr, os.Getenv("CRMDESK_DEBUG") != "")

	st, err := store.Open(config.DBPath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	sessions, err := session.NewManager(st, nil)
	if err != nil {
		log.Fatalf("failed to load session: %v", err)
	}

	s := &services{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		tr:       i18n.MustLoad().For(sessions),
		notices:  notify.NewCenter(),
		cache:    query.NewClient(query.Options{StaleTime: cfg.StaleTime()}),
	}
	s.notices.OnNotify(func(n notify.Notice) {
		fmt.Fprintf(os.Stderr, "%s %s\n", n.Level.Icon(), n.Text)
	})

	opts := []api.Option{api.WithTimeout(cfg.RequestTimeout())}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	}
	s.client = api.New(cfg.API.BaseURL, tokenOverride{Provider: sessions, token: cfg.API.Token}, opts...)
	s.reader = catalog.NewReader(s.client, s.notices, s.tr, nil)
	s.writer = catalog.NewWriter(s.client, nil)
	s.hook = fetch.New(s.reader, s.cache)
	return s
}

func (s *services) Close() {
	s.cache.Close()
	s.store.Close()
}

// manipulator returns the mutate hook for resource.
func (s *services) manipulator(resource string) *mutate.Manipulator {
	return mutate.New(mutate.Options{Endpoint: resource}, s.writer, s.cache, s.notices, s.tr, nil)
}

// signalContext is cancelled on Ctrl-C.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// resolveResource accepts a registry name or a literal path, or fatals.
func resolveResource(nameOrPath string) string {
	if nameOrPath == "" {
		fmt.Fprintln(os.Stderr, "error: -r <resource> is required")
		os.Exit(2)
	}
	path, err := catalog.Endpoints().Resolve(nameOrPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	return path
}

// kvFlag collects repeated -set key=value flags.
type kvFlag map[string]any

func (f kvFlag) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (f kvFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	f[k] = val
	return nil
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
