package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const validDoc = `<items>
  <item path="/sites/www/index.html" name="Home" type="page">
    <fields><field name="title" value="Welcome"/></fields>
  </item>
</items>`

// fakeServer accepts one user and counts import calls. failFirst import calls
// answer 503 before succeeding.
type fakeServer struct {
	failFirst   int32
	importCalls atomic.Int32
	status      int
	garbled     bool
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["name"] != "admin" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code":"unauthenticated","message":"invalid user name or password"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "percussion_auth", Value: "ok", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/content/import", func(w http.ResponseWriter, r *http.Request) {
		n := f.importCalls.Add(1)
		if _, err := r.Cookie("percussion_auth"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/xml" {
			t.Errorf("unexpected content type %q", ct)
		}
		if n <= f.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if f.garbled {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"results":[`)
			return
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
			io.WriteString(w, `{"code":"invalid_request","message":"bad document"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"path":"/sites/www/index.html","status":"CREATED"}],"created":1,"updated":0,"failed":0}`)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeServer, password string) *Client {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)

	client, err := New(Options{
		Server:     ts.URL,
		User:       "admin",
		Password:   password,
		Retries:    2,
		Rate:       1000,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestNewRejectsBadServer(t *testing.T) {
	for _, server := range []string{"", "localhost:9980", "://bad"} {
		if _, err := New(Options{Server: server}); err == nil {
			t.Fatalf("expected error for %q", server)
		}
	}
}

func TestLogin(t *testing.T) {
	f := &fakeServer{}
	if err := newTestClient(t, f, "secret").Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := newTestClient(t, f, "wrong").Login(context.Background())
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid user name or password") {
		t.Fatalf("expected server message in error, got %v", err)
	}
}

func TestImportRetriesServerErrors(t *testing.T) {
	f := &fakeServer{failFirst: 2}
	client := newTestClient(t, f, "secret")
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	summary, err := client.Import(context.Background(), "a.xml", []byte(validDoc))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Created != 1 || len(summary.Results) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := f.importCalls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestImportGivesUpAfterRetries(t *testing.T) {
	f := &fakeServer{failFirst: 10}
	client := newTestClient(t, f, "secret")
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := client.Import(context.Background(), "a.xml", []byte(validDoc))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if got := f.importCalls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestImportDoesNotRetryClientErrors(t *testing.T) {
	f := &fakeServer{status: http.StatusBadRequest}
	client := newTestClient(t, f, "secret")
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := client.Import(context.Background(), "a.xml", []byte(validDoc))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest || statusErr.Message != "bad document" {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if got := f.importCalls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestImportDoesNotRetryUndecodableSuccess(t *testing.T) {
	f := &fakeServer{garbled: true}
	client := newTestClient(t, f, "secret")
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := client.Import(context.Background(), "a.xml", []byte(validDoc)); err == nil {
		t.Fatal("expected decode error")
	}
	if got := f.importCalls.Load(); got != 1 {
		t.Fatalf("an accepted batch must not be re-sent, got %d calls", got)
	}
}

func TestRetryable(t *testing.T) {
	refused := &url.Error{Op: "Post", URL: "http://localhost:1", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	canceled := &url.Error{Op: "Post", URL: "http://localhost:1", Err: context.Canceled}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection refused", refused, true},
		{"server error", &StatusError{Code: http.StatusBadGateway}, true},
		{"client error", &StatusError{Code: http.StatusBadRequest}, false},
		{"canceled", canceled, false},
		{"undecodable body", fmt.Errorf("decode response: %v", io.ErrUnexpectedEOF), false},
	}
	for _, tc := range tests {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("%s: retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFindFilesSortsAndFilters(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.xml":     validDoc,
		"a.xml":     validDoc,
		"notes.txt": "ignore me",
	})
	if err := os.Mkdir(filepath.Join(dir, "dir.xml"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := FindFiles(dir, "*.xml")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.xml" || filepath.Base(files[1]) != "b.xml" {
		t.Fatalf("unexpected files: %v", files)
	}

	if _, err := FindFiles(filepath.Join(dir, "missing"), "*.xml"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRunReportsInvalidAndUploaded(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.xml": validDoc,
		"b.xml": "<items><item",
		"c.xml": "<items></items>",
	})
	files, err := FindFiles(dir, "*.xml")
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	f := &fakeServer{}
	client := newTestClient(t, f, "secret")
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	var seen []string
	report := Run(context.Background(), client, files, func(res FileResult) {
		seen = append(seen, filepath.Base(res.Path))
	})

	if len(report.Files) != 3 || strings.Join(seen, ",") != "a.xml,b.xml,c.xml" {
		t.Fatalf("unexpected order: %v", seen)
	}
	if report.Files[0].Status != StatusUploaded || report.Files[0].Items != 1 {
		t.Fatalf("a.xml: %+v", report.Files[0])
	}
	if report.Files[1].Status != StatusInvalid || report.Files[2].Status != StatusInvalid {
		t.Fatalf("expected b.xml and c.xml invalid: %+v %+v", report.Files[1], report.Files[2])
	}
	if report.FailedFiles() != 2 {
		t.Fatalf("expected 2 failed files, got %d", report.FailedFiles())
	}
	if created, _, _ := report.Totals(); created != 1 {
		t.Fatalf("expected 1 created item, got %d", created)
	}
	if got := f.importCalls.Load(); got != 1 {
		t.Fatalf("invalid files must not be uploaded, got %d calls", got)
	}
}

func TestRunDryRunSkipsUpload(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.xml": validDoc})
	files, err := FindFiles(dir, "*.xml")
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	report := Run(context.Background(), nil, files, nil)
	if len(report.Files) != 1 || report.Files[0].Status != StatusValid || report.FailedFiles() != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
