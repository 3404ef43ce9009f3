package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

func TestE2E_DeskBrowseAndTerminate(t *testing.T) {
	binPath := buildBinary(t, "crmdesk")
	srv := startBackend(t)
	homeDir := t.TempDir()

	cmd := exec.Command(binPath)
	cmd.Env = clientEnv(homeDir, srv.URL)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Fatalf("failed to start pty: %v", err)
	}
	defer func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
	}()

	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: 120, Rows: 40}); err != nil {
		t.Fatalf("failed to set pty size: %v", err)
	}

	var outputBuf bytes.Buffer
	console, err := expect.NewConsole(
		expect.WithStdin(ptmx),
		expect.WithStdout(&outputBuf),
		expect.WithDefaultTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	defer console.Close()

	// 1. First page of hotels
	t.Log("Waiting for first page...")
	if _, err := console.ExpectString("Hotel Azul"); err != nil {
		dumpLogs(t, homeDir)
		t.Fatalf("first page not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}
	if _, err := console.ExpectString("Page 1 of"); err != nil {
		t.Fatalf("pager not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}

	// 2. Terminate the selected row
	time.Sleep(300 * time.Millisecond)
	t.Log("Sending 't'...")
	if _, err := console.Send("t"); err != nil {
		t.Fatalf("failed to send t: %v", err)
	}
	if _, err := console.ExpectString("Changes saved"); err != nil {
		t.Fatalf("success toast not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}
	if _, err := console.ExpectString("Terminated"); err != nil {
		t.Fatalf("refetched status not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}

	// 3. Quit
	t.Log("Sending 'q'...")
	if _, err := console.Send("q"); err != nil {
		t.Fatalf("failed to send q: %v", err)
	}

	done := make(chan error)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
		t.Log("Process exited successfully")
	case <-time.After(2 * time.Second):
		t.Error("Process did not exit after 'q'")
	}

	if _, err := os.Stat(filepath.Join(homeDir, ".crmdesk", "crmdesk.events.jsonl")); err != nil {
		t.Errorf("event log not written: %v", err)
	}
}

func dumpLogs(t *testing.T, homeDir string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(homeDir, ".crmdesk", "logs", "*.log"))
	for _, m := range matches {
		if logs, err := os.ReadFile(m); err == nil {
			t.Logf("%s:\n%s", filepath.Base(m), logs)
		}
	}
}
