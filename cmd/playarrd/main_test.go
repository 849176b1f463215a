package main

import (
	"context"
	"testing"

	"playarr/internal/logging"
	"playarr/internal/testsupport"
)

func TestBuildDaemonWithoutOriginSystems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	d, err := buildDaemon(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	if d == nil {
		t.Fatal("expected daemon")
	}
}

func TestBuildDaemonRejectsIncompleteServarrConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sonarr.Enabled = true
	cfg.Sonarr.URL = ""
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := buildDaemon(cfg, st, logging.NewNop()); err == nil {
		t.Fatal("expected error for enabled sonarr without url")
	}
}

func TestReportPreflightDoesNotPanic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	reportPreflight(context.Background(), cfg, st, logging.NewNop())
}
