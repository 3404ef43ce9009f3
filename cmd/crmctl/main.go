// Command crmctl drives the catalog services without the TUI.
//
// Usage:
//
//	crmctl                          Show help
//	crmctl list -r CATALOGS.HOTEL   One page of a resource
//	crmctl create -r ... -set k=v   POST a record
//	crmctl update -r ... -id X      PATCH a record
//	crmctl state -r ... -id X -to terminate
//	crmctl search -r ... <term>     The desk's remote lookup
//	crmctl events                   JSONL event log viewer
//	crmctl lang [code]              Show or change the language
//	crmctl login [token]            Store the access token
package main

import (
	"fmt"
	"os"
)

const usage = `crmctl - crmdesk catalog CLI

Usage:
  crmctl <command> [flags]

Commands:
  list        List one page of a resource
  create      Create a record
  update      Update a record
  state       Activate, deactivate, terminate or reopen a record
  search      Remote lookup by label, as the desk's search select does it
  events      JSONL event log viewer
  lang        Show or change the session language
  login       Store (or clear) the access token

Environment:
  CRMDESK_API_URL    Backend base URL (default: http://localhost:8089)
  CRMDESK_TOKEN      Access token, overrides the stored one
  CRMDESK_ENV        "dev" enables diagnostics

Run 'crmctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "list":
		runList()
	case "create":
		runCreate()
	case "update":
		runUpdate()
	case "state":
		runState()
	case "search":
		runSearch()
	case "events":
		runEvents()
	case "lang":
		runLang()
	case "login":
		runLogin()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "crmctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
