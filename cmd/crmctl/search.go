package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	resource := fs.String("r", "", "Resource registry name or path (required)")
	limit := fs.Int("limit", 10, "Maximum options returned")
	fs.Parse(os.Args[1:])

	path := resolveResource(*resource)
	term := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if term == "" {
		fmt.Fprintln(os.Stderr, "usage: crmctl search -r <resource> [-limit N] <term>")
		os.Exit(2)
	}

	svc := openServices()
	defer svc.Close()
	if n := svc.cfg.Search.MinLength; len([]rune(term)) < n {
		fmt.Fprintln(os.Stderr, "error: "+svc.tr.T("select.minLength", n))
		os.Exit(2)
	}

	ctx, cancel := signalContext()
	defer cancel()

	t0 := time.Now()
	rows, err := svc.hook.Search(ctx, path, term, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf(">>> %q in %s (%v)\n", term, path, time.Since(t0).Round(time.Millisecond))
	fmt.Println(strings.Repeat("-", 60))
	if len(rows) == 0 {
		fmt.Println("  " + svc.tr.T("select.noResults"))
		return
	}
	for i, r := range rows {
		fmt.Printf("  %2d. %-12s %s\n", i+1, r.ID(), truncate(r.String("name"), 44))
	}
}
