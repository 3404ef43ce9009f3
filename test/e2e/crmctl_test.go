package e2e

import (
	"os/exec"
	"strings"
	"testing"
)

func TestE2E_CtlListAndState(t *testing.T) {
	binPath := buildBinary(t, "crmctl")
	srv := startBackend(t)
	env := clientEnv(t.TempDir(), srv.URL)

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command(binPath, args...)
		cmd.Env = env
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("crmctl %v: %v\n%s", args, err, out)
		}
		return string(out)
	}

	out := run("list", "-r", "CATALOGS.HOTEL", "-limit", "3")
	for _, want := range []string{"Hotel Azul", "Page 1 of 3", "8 records"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out = run("search", "-r", "catalogs/hotel", "Verde")
	if !strings.Contains(out, "Hotel Verde") || strings.Contains(out, "Hotel Azul") {
		t.Errorf("search output:\n%s", out)
	}

	out = run("create", "-r", "CATALOGS.HOTEL", "-set", "name=Hotel Nuevo")
	if !strings.Contains(out, `"Hotel Nuevo"`) || !strings.Contains(out, "Changes saved") {
		t.Errorf("create output:\n%s", out)
	}

	out = run("list", "-r", "CATALOGS.HOTEL", "-where", "status=2", "-json")
	if !strings.Contains(out, `"total": 1`) {
		t.Errorf("expected one terminated seed row:\n%s", out)
	}
}

func TestE2E_CtlRejectsUnknownResource(t *testing.T) {
	binPath := buildBinary(t, "crmctl")
	cmd := exec.Command(binPath, "list", "-r", "CATALOGS.NOPE")
	cmd.Env = clientEnv(t.TempDir(), "http://127.0.0.1:1")
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected failure, got:\n%s", out)
	}
	if !strings.Contains(string(out), "unknown endpoint") {
		t.Errorf("output:\n%s", out)
	}
}
