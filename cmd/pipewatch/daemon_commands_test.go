package main

import (
	"bytes"
	"strings"
	"testing"

	"pipewatch/internal/api"
	"pipewatch/internal/daemonctl"
	"pipewatch/internal/preflight"
	"pipewatch/internal/testsupport"
)

func TestStatusCommandRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "track", "--id", "R1", "src")

	out := env.run(t, "status")
	requireContains(t, out, "System Status")
	requireContains(t, out, "[OK] Running")
	requireContains(t, out, "Mode:")
	requireContains(t, out, "standby")
	requireContains(t, out, "Components")
	requireContains(t, out, "ingestion")
	requireContains(t, out, "Event Sinks")
	requireContains(t, out, "archive")
}

func TestStopWithoutDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	configPath := testsupport.WriteConfig(t, cfg)

	out, _, err := runCLI(t, []string{"stop"}, cfg.SocketPath(), configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")

	out, _, err = runCLI(t, []string{"status"}, cfg.SocketPath(), configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
	if strings.Contains(out, "Components") {
		t.Fatalf("offline status should not render components:\n%s", out)
	}
}

func TestCommandsReportMissingSocket(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	configPath := testsupport.WriteConfig(t, cfg)

	_, _, err := runCLI(t, []string{"pipelines"}, cfg.SocketPath(), configPath)
	if err == nil || !strings.Contains(err.Error(), "pipewatch start") {
		t.Fatalf("expected dial hint, got %v", err)
	}
}

func TestRenderStatusOffline(t *testing.T) {
	snapshot := &daemonctl.StatusSnapshot{
		Status: &api.DaemonStatus{},
		Checks: []preflight.Result{
			{Name: "Log directory", Passed: true, Detail: "/tmp/logs"},
			{Name: "Inbox directory", Detail: "missing"},
		},
		API: preflight.Result{Name: "Status API", Detail: "Inactive (daemon not running)"},
	}
	var buf bytes.Buffer
	renderStatus(&buf, snapshot, false)
	out := buf.String()
	requireContains(t, out, "[ERROR] Not running")
	requireContains(t, out, "[OK] /tmp/logs")
	requireContains(t, out, "[ERROR] missing")
	requireContains(t, out, "[INFO] Inactive")
}

func TestTriggerDetail(t *testing.T) {
	if got := triggerDetail("", false); got != "Not configured" {
		t.Fatalf("unexpected detail %q", got)
	}
	if got := triggerDetail("/dev/sr0", true); got != "Watching /dev/sr0" {
		t.Fatalf("unexpected detail %q", got)
	}
	if triggerKind("/dev/sr0", false) != statusWarn {
		t.Fatal("configured but idle trigger should warn")
	}
}
