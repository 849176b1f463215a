package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"playarr/internal/config"
	"playarr/internal/preflight"
	"playarr/internal/store"
	"playarr/internal/testsupport"
)

func TestCheckDirectoryReadable(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryReadable("Library", dir)
	if !result.Passed {
		t.Errorf("readable dir failed: %+v", result)
	}

	missing := preflight.CheckDirectoryReadable("Library", filepath.Join(dir, "gone"))
	if missing.Passed {
		t.Errorf("missing dir passed: %+v", missing)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	notDir := preflight.CheckDirectoryReadable("Library", file)
	if notDir.Passed {
		t.Errorf("regular file passed: %+v", notDir)
	}
}

func TestCheckFFprobe(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckFFprobe(stub); !result.Passed {
		t.Errorf("stub binary failed: %+v", result)
	}
	if result := preflight.CheckFFprobe(filepath.Join(dir, "missing")); result.Passed {
		t.Errorf("missing binary passed: %+v", result)
	}
}

func TestCheckServarr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/system/status" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "good" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"version": "4.0.0"}`))
	}))
	defer server.Close()
	ctx := context.Background()

	ok := preflight.CheckServarr(ctx, "Sonarr", config.Servarr{URL: server.URL, APIKey: "good"})
	if !ok.Passed {
		t.Errorf("valid key failed: %+v", ok)
	}
	bad := preflight.CheckServarr(ctx, "Sonarr", config.Servarr{URL: server.URL, APIKey: "bad"})
	if bad.Passed || bad.Detail != "auth failed (invalid api key)" {
		t.Errorf("invalid key result: %+v", bad)
	}
	missing := preflight.CheckServarr(ctx, "Sonarr", config.Servarr{APIKey: "k"})
	if missing.Passed {
		t.Errorf("missing url passed: %+v", missing)
	}
}

func TestRunAllCoversConfiguredChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Scan.FFprobeBinary = stub

	libraries := []*store.LibraryPath{{Path: t.TempDir()}}
	results := preflight.RunAll(context.Background(), cfg, libraries)
	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3 (data dir, ffprobe, library)", len(results))
	}
	if !preflight.AllPassed(results) {
		t.Errorf("expected all checks to pass: %+v", results)
	}
}
