package e2e

import (
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/abelbrown/crmdesk/internal/mockapi"
	"github.com/abelbrown/crmdesk/internal/store"
)

const fixtureToken = "e2e-token"

// buildBinary builds ./cmd/<name> into a temp dir and returns its path.
func buildBinary(t *testing.T, name string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), name)

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// Assume we are in test/e2e, go up 2 levels
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/"+name)
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

// startBackend serves seeded hotels from a fresh database.
func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "backend.db"))
	if err != nil {
		t.Fatalf("open backend store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	resources := []string{"catalogs/hotel", "catalogs/region", "catalogs/cancel-reason"}
	if _, err := mockapi.Seed(st, resources, 8); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := httptest.NewServer(mockapi.New(st, mockapi.Options{Token: fixtureToken, Resources: resources}))
	t.Cleanup(srv.Close)
	return srv
}

// clientEnv points a binary at the backend with a throwaway home.
func clientEnv(homeDir, apiURL string) []string {
	return append(os.Environ(),
		"HOME="+homeDir,
		"LANG=en_US.UTF-8",
		"LC_ALL=",
		"LC_MESSAGES=",
		"CRMDESK_API_URL="+apiURL,
		"CRMDESK_TOKEN="+fixtureToken,
	)
}
