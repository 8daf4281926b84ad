package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validDoc = `<items><item path="/sites/www/a.html" name="A"/></items>`

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDryRun(t *testing.T) {
	dir := writeDir(t, map[string]string{"a.xml": validDoc})

	out, err := execute(t, "--dir", dir, "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "VALID") || !strings.Contains(out, "a.xml: 1 items") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestDryRunFailsOnInvalidFile(t *testing.T) {
	dir := writeDir(t, map[string]string{"a.xml": validDoc, "b.xml": "<items>"})

	out, err := execute(t, "--dir", dir, "--dry-run")
	if !errors.Is(err, errFilesFailed) {
		t.Fatalf("expected errFilesFailed, got %v", err)
	}
	if !strings.Contains(out, "INVALID") || !strings.Contains(out, "2 files processed, 1 failed") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestUploadRequiresCredentials(t *testing.T) {
	t.Setenv(passwordEnv, "")
	dir := writeDir(t, map[string]string{"a.xml": validDoc})

	if _, err := execute(t, "--dir", dir, "--server", "http://localhost:1"); err == nil {
		t.Fatal("expected error without --user")
	}
	if _, err := execute(t, "--dir", dir, "--server", "http://localhost:1", "--user", "admin"); err == nil {
		t.Fatal("expected error without a password")
	}
}

func TestUploadUsesPasswordFromEnvironment(t *testing.T) {
	var imports int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"password":"from-env"`) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "percussion_auth", Value: "ok", Path: "/"})
	})
	mux.HandleFunc("POST /api/v1/content/import", func(w http.ResponseWriter, r *http.Request) {
		imports++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"path":"/sites/www/a.html","status":"CREATED"}],"created":1}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	t.Setenv(passwordEnv, "from-env")
	dir := writeDir(t, map[string]string{"a.xml": validDoc})

	out, err := execute(t, "--dir", dir, "--server", ts.URL, "--user", "admin", "--rate", "100")
	if err != nil {
		t.Fatalf("upload: %v\n%s", err, out)
	}
	if imports != 1 || !strings.Contains(out, "items created 1") {
		t.Fatalf("unexpected result (%d imports):\n%s", imports, out)
	}
}
