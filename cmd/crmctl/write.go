package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/crmdesk/internal/api"
	"github.com/abelbrown/crmdesk/internal/mutate"
)

func runCreate() {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	resource := fs.String("r", "", "Resource registry name or path (required)")
	values := make(kvFlag)
	fs.Var(values, "set", "Field as key=value (repeatable)")
	fs.Parse(os.Args[1:])

	path := resolveResource(*resource)
	if len(values) == 0 {
		fmt.Fprintln(os.Stderr, "usage: crmctl create -r <resource> -set key=value [-set ...]")
		os.Exit(2)
	}
	send(path, mutate.Envelope{Values: map[string]any(values)})
}

func runUpdate() {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	resource := fs.String("r", "", "Resource registry name or path (required)")
	id := fs.String("id", "", "Record ID")
	paramID := fs.Bool("param-id", false, "Address the record as ?id= instead of /id")
	params := fs.String("params", "", "Explicit path suffix, overrides -id addressing")
	values := make(kvFlag)
	fs.Var(values, "set", "Field as key=value (repeatable)")
	fs.Parse(os.Args[1:])

	path := resolveResource(*resource)
	if (*id == "" && *params == "") || len(values) == 0 {
		fmt.Fprintln(os.Stderr, "usage: crmctl update -r <resource> -id <id> -set key=value [-set ...]")
		os.Exit(2)
	}
	send(path, mutate.Envelope{
		Values:         map[string]any(values),
		TargetID:       *id,
		PostValidation: *params != "",
		IsParamID:      *paramID,
		Params:         *params,
	})
}

func runState() {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	resource := fs.String("r", "", "Resource registry name or path (required)")
	id := fs.String("id", "", "Record ID (required)")
	to := fs.String("to", "", "activate, deactivate, terminate or reopen")
	fs.Parse(os.Args[1:])

	path := resolveResource(*resource)
	transition, err := mutate.ParseTransition(*to)
	if err != nil || *id == "" {
		fmt.Fprintln(os.Stderr, "usage: crmctl state -r <resource> -id <id> -to activate|deactivate|terminate|reopen")
		os.Exit(2)
	}

	svc := openServices()
	defer svc.Close()
	ctx, cancel := signalContext()
	defer cancel()

	report(svc.manipulator(path).Transition(ctx, transition, *id))
}

func send(path string, env mutate.Envelope) {
	svc := openServices()
	defer svc.Close()
	ctx, cancel := signalContext()
	defer cancel()

	res := svc.manipulator(path).Send(ctx, env)
	// Send leaves feedback to the caller
	if res.OK() {
		svc.notices.Success(svc.tr.T("modals.successSave"))
	} else if !api.IsCanceled(res.Err) {
		svc.notices.Error(svc.tr.T("modals.errorSave"))
	}
	report(res)
}

// report prints the response body. Failures already surfaced as notices
// on stderr, so only the exit code is set here.
func report(res mutate.Result) {
	if res.Response != nil && len(res.Response.Body) > 0 {
		var body any
		if json.Unmarshal(res.Response.Body, &body) == nil {
			out, _ := json.MarshalIndent(body, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(res.Response.Body))
		}
	}
	if !res.OK() {
		os.Exit(1)
	}
}
