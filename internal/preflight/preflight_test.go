package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pipewatch/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileWritable(t *testing.T) {
	dir := t.TempDir()

	missing := CheckFileWritable("archive", filepath.Join(dir, "events.ndjson"))
	if !missing.Passed || !strings.Contains(missing.Detail, "will be created") {
		t.Fatalf("expected creatable file to pass, got %+v", missing)
	}

	existing := filepath.Join(dir, "existing.ndjson")
	if err := os.WriteFile(existing, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckFileWritable("archive", existing)
	if !result.Passed || !strings.Contains(result.Detail, "2.0 KiB") {
		t.Fatalf("expected writable file with size, got %+v", result)
	}

	if r := CheckFileWritable("archive", dir); r.Passed {
		t.Fatal("expected directory path to fail")
	}
	if r := CheckFileWritable("archive", filepath.Join(dir, "no", "such", "events.ndjson")); r.Passed {
		t.Fatal("expected missing parent to fail")
	}
	if r := CheckFileWritable("archive", " "); r.Passed {
		t.Fatal("expected empty path to fail")
	}
}

func TestCheckBindAddress(t *testing.T) {
	tests := []struct {
		addr string
		pass bool
	}{
		{"127.0.0.1:7491", true},
		{":7491", true},
		{"[::1]:7491", true},
		{"localhost", false},
		{"127.0.0.1:", false},
	}
	for _, tt := range tests {
		if got := CheckBindAddress("api", tt.addr); got.Passed != tt.pass {
			t.Errorf("CheckBindAddress(%q) passed=%v, want %v (%s)", tt.addr, got.Passed, tt.pass, got.Detail)
		}
	}
}

func TestCheckStatusAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bind := strings.TrimPrefix(srv.URL, "http://")
	if result := CheckStatusAPI(context.Background(), bind, "secret"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckStatusAPI(context.Background(), srv.URL, "wrong")
	if result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", result)
	}
	if result := CheckStatusAPI(context.Background(), "", ""); !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got %+v", result)
	}
}

func TestCheckStatusAPI_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	if result := CheckStatusAPI(context.Background(), addr, ""); result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestRunAll(t *testing.T) {
	if RunAll(nil) != nil {
		t.Fatal("expected nil results for nil config")
	}

	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.EventsFile = filepath.Join(cfg.Paths.LogDir, "events.ndjson")
	cfg.Paths.JournalFile = filepath.Join(cfg.Paths.LogDir, "journal.db")
	cfg.Paths.InboxDir = filepath.Join(cfg.Paths.LogDir, "missing-inbox")
	cfg.Journal.Enabled = true

	results := RunAll(&cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := []string{"Log directory", "Event archive", "Journal", "Inbox directory", "Status API"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("checks = %v, want %v", names, want)
	}

	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Inbox directory" {
		t.Fatalf("expected only the inbox check to fail, got %+v", failed)
	}
}
