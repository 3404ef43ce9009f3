package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/crmdesk/internal/session"
)

func runLang() {
	fs := flag.NewFlagSet("lang", flag.ExitOnError)
	fs.Parse(os.Args[1:])

	svc := openServices()
	defer svc.Close()

	if fs.NArg() == 0 {
		current := svc.sessions.Language()
		for _, l := range session.Supported {
			mark := " "
			if l == current {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, l)
		}
		return
	}

	if err := svc.sessions.ChangeLanguage(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", svc.tr.T("ui.language"), svc.sessions.Language())
}

func runLogin() {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	doClear := fs.Bool("clear", false, "Remove the stored token")
	fs.Parse(os.Args[1:])

	svc := openServices()
	defer svc.Close()

	switch {
	case *doClear:
		if err := svc.sessions.ClearCredential(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token cleared")
		return
	case fs.NArg() > 0:
		if err := svc.sessions.SetCredential(strings.TrimSpace(fs.Arg(0))); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	claims, err := svc.sessions.Claims()
	if errors.Is(err, session.ErrNoCredential) {
		fmt.Println(svc.tr.T("ui.notSignedIn"))
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(svc.tr.T("ui.signedInAs", claims.Name))
	if claims.Email != "" {
		fmt.Printf("  email:   %s\n", claims.Email)
	}
	if !claims.ExpiresAt.IsZero() {
		fmt.Printf("  expires: %s (%s)\n", claims.ExpiresAt.Local().Format(time.RFC1123), time.Until(claims.ExpiresAt).Round(time.Second))
	}
}
