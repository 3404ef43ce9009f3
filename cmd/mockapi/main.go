// Command mockapi serves a development backend for crmdesk over a local
// SQLite file.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/mockapi"
	"github.com/abelbrown/crmdesk/internal/store"
)

const usage = `Mock catalog backend.

Usage:
    mockapi [--addr=<addr>] [--db=<path>] [--token=<token>]
        [--seed=<n>] [--latency=<dur>] [--debug]
    mockapi -h | --help
    mockapi --version

Options:
    -h --help          Show this screen.
    --version          Show version.
    --addr=<addr>      Listen address [default: :8089].
    --db=<path>        SQLite file, ":memory:" for a throwaway store [default: :memory:].
    --token=<token>    Require "Authorization: Bearer <token>".
    --seed=<n>         Sample records per empty resource [default: 25].
    --latency=<dur>    Delay every response, e.g. 300ms [default: 0s].
    --debug            Log every request.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], logging.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts docopt.Opts) error {
	addr, _ := opts.String("--addr")
	dbPath, _ := opts.String("--db")
	token, _ := opts.String("--token")
	debug, _ := opts.Bool("--debug")
	seed, err := opts.Int("--seed")
	if err != nil {
		return fmt.Errorf("--seed: %w", err)
	}
	latencyStr, _ := opts.String("--latency")
	latency, err := time.ParseDuration(latencyStr)
	if err != nil {
		return fmt.Errorf("--latency: %w", err)
	}

	logging.InitWriter(os.Stderr, debug)
	log := logging.WithPrefix("mockapi")

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := catalog.Endpoints()
	var resources []string
	for _, name := range reg.Names() {
		resources = append(resources, reg.MustPath(name))
	}
	n, err := mockapi.Seed(st, resources, seed)
	if err != nil {
		return err
	}
	log.Info("seeded", "records", n, "resources", len(resources))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mockapi.New(st, mockapi.Options{Token: token, Latency: latency, Resources: resources}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "auth", token != "", "latency", latency)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
