package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/docopt/docopt-go"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/config"
	"github.com/abelbrown/crmdesk/internal/coord"
	"github.com/abelbrown/crmdesk/internal/fetch"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/mutate"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/otel"
	"github.com/abelbrown/crmdesk/internal/query"
	"github.com/abelbrown/crmdesk/internal/session"
	"github.com/abelbrown/crmdesk/internal/store"
	"github.com/abelbrown/crmdesk/internal/ui"
	"github.com/abelbrown/crmdesk/internal/ui/selectlazy"
)

const usage = `crmdesk - catalog back-office terminal

Usage:
  crmdesk [--resource=<name>...] [--dev] [--debug]
  crmdesk -h | --help
  crmdesk --version

Options:
  -r --resource=<name>  Registry name or path to browse, repeatable. The first is shown on startup.
  --dev                 Mount the diagnostic overlay.
  --debug               Debug-level logging.
  -h --help             Show this screen.
  --version             Show version.
`

// defaultResources follow the configured startup resource in the tab cycle.
var defaultResources = []string{"CATALOGS.HOTEL", "CATALOGS.REGION", "CATALOGS.CANCEL_REASON"}

func main() {
	opts, _ := docopt.ParseArgs(usage, nil, logging.Version)
	debug, _ := opts.Bool("--debug")
	dev, _ := opts.Bool("--dev")
	names, _ := opts["--resource"].([]string)

	if err := logging.Init(debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dev {
		cfg.Env = "dev"
	}
	if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Diagnostic events: JSONL on disk, the last few in memory for the overlay
	diag, closer, err := otel.OpenFile(config.EventLogPath())
	if err != nil {
		logging.Warn("Event log unavailable", "error", err)
		diag = otel.NewNullLogger()
	} else {
		defer closer.Close()
	}
	defer diag.Close()
	ring := otel.NewRingBuffer(0)
	diag.SetRingBuffer(ring)

	st, err := store.Open(config.DBPath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()
	logging.Info("Store initialized", "path", config.DBPath())

	sessions, err := session.NewManager(st, diag)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}
	if cfg.API.Token != "" {
		if err := sessions.SetCredential(cfg.API.Token); err != nil {
			logging.Warn("Failed to store token", "error", err)
		}
	}
	tr := i18n.MustLoad().For(sessions)

	clientOpts := []api.Option{api.WithTimeout(cfg.RequestTimeout()), api.WithDiagnostics(diag)}
	if cfg.API.RateLimit > 0 {
		clientOpts = append(clientOpts, api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	}
	client := api.New(cfg.API.BaseURL, sessions, clientOpts...)

	notices := notify.NewCenter()
	reader := catalog.NewReader(client, notices, tr, diag)
	writer := catalog.NewWriter(client, diag)
	cache := query.NewClient(query.Options{StaleTime: cfg.StaleTime(), Diag: diag})
	defer cache.Close()
	hook := fetch.New(reader, cache)

	// One manipulator per resource so pending flags survive tab switches
	manipulators := map[string]*mutate.Manipulator{}
	mutations := func(resource string) ui.Mutator {
		m, ok := manipulators[resource]
		if !ok {
			m = mutate.New(mutate.Options{Endpoint: resource}, writer, cache, notices, tr, diag)
			manipulators[resource] = m
		}
		return m
	}

	search := func(resource string) selectlazy.SearchFunc {
		return func(ctx context.Context, term string) ([]selectlazy.Option, error) {
			rows, err := hook.Search(ctx, resource, term, cfg.Query.PageSize)
			if err != nil {
				return nil, err
			}
			options := make([]selectlazy.Option, len(rows))
			for i, r := range rows {
				options[i] = selectlazy.Option{Value: r.ID(), Label: r.String("name"), Data: r}
			}
			return options, nil
		}
	}

	if len(names) == 0 {
		names = append([]string{cfg.UI.Resource}, defaultResources...)
	}
	resources := resolveResources(names)
	if len(resources) == 0 {
		log.Fatalf("No browsable resources in %v", names)
	}

	app := ui.NewAppWithConfig(ui.AppConfig{
		Context:         ctx,
		Listings:        hook,
		Focus:           cache,
		Mutations:       mutations,
		Search:          search,
		Languages:       sessions,
		Notices:         notices,
		Translator:      tr,
		Resources:       resources,
		PageSize:        cfg.Query.PageSize,
		SearchDebounce:  cfg.Debounce(),
		SearchMinLength: cfg.Search.MinLength,
		Features: ui.Features{
			Debug:     cfg.IsDev(),
			Search:    true,
			PhoneForm: true,
		},
		Obs: ui.ObsConfig{Ring: ring, Diag: diag},
	})

	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	coordinator := coord.New(notices, sessions, tr, coord.Options{})
	coordinator.Start(ctx, program)

	logging.Info("Starting UI", "api", cfg.API.BaseURL, "resources", len(resources), "env", cfg.Env)
	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logging.Error("Application error", "error", err)
	}
	if a, ok := final.(ui.App); ok {
		a.Close()
	}

	// Graceful shutdown
	cancel()
	coordinator.Wait()
	logging.Info("crmdesk exiting normally")
}

// resolveResources maps registry names or paths to tabs, skipping
// unknown and duplicate entries.
func resolveResources(names []string) []ui.Resource {
	reg := catalog.Endpoints()
	seen := map[string]bool{}
	var out []ui.Resource
	for _, name := range names {
		path, err := reg.Resolve(name)
		if err != nil {
			logging.Warn("Skipping resource", "name", name, "error", err)
			continue
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, ui.Resource{Name: name, Path: path})
	}
	return out
}
