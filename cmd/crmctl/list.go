package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/fetch"
)

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	resource := fs.String("r", "", "Resource registry name or path (required)")
	limit := fs.Int("limit", 0, "Page size (default: config page_size)")
	page := fs.Int("page", 0, "Zero-based page index")
	filter := make(kvFlag)
	fs.Var(filter, "where", "Filter as key=value (repeatable)")
	all := fs.Bool("all", false, "Disable pagination")
	rawJSON := fs.Bool("json", false, "Print the raw page as JSON")
	fs.Parse(os.Args[1:])

	path := resolveResource(*resource)

	svc := openServices()
	defer svc.Close()

	if *limit <= 0 {
		*limit = svc.cfg.Query.PageSize
	}

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := svc.hook.Get(ctx, fetch.Params{
		Endpoint:          path,
		Limit:             *limit,
		Skip:              *page,
		Queries:           catalog.DynamicQuery(filter),
		DisablePagination: *all,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	result, err := catalog.DecodePage(resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *rawJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println(renderRows(result.Data, svc.tr.T))
	fmt.Printf("%s  %s\n", svc.tr.T("ui.page", *page+1, pageCount(result.Total, *limit)), svc.tr.T("ui.total", result.Total))
}

// listColumns are printed in order. Missing fields render blank.
var listColumns = []string{"id", "name", "phone", "email", "status"}

// renderRows draws rows as a bordered table. Status codes go through t.
func renderRows(rows []catalog.Row, t func(key string, args ...any) string) string {
	headers := make([]string, len(listColumns))
	for i, c := range listColumns {
		headers[i] = strings.ToUpper(c)
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	for _, r := range rows {
		cells := make([]string, len(listColumns))
		for i, c := range listColumns {
			if c == "status" {
				cells[i] = t(r.Status().MessageKey())
				continue
			}
			cells[i] = truncate(r.String(c), 40)
		}
		tbl.Row(cells...)
	}
	return tbl.String()
}

func pageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}
