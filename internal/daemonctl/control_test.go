package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pipewatch/internal/ipc"
	"pipewatch/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	pid, err := ReadPID(filepath.Join(dir, "missing.pid"))
	if err != nil || pid != 0 {
		t.Fatalf("missing pid file: got %d, %v", pid, err)
	}

	path := filepath.Join(dir, "pipewatch.pid")
	testsupport.WriteLines(t, path, "4242")
	pid, err = ReadPID(path)
	if err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got %d, %v", pid, err)
	}

	testsupport.WriteLines(t, path, "not-a-pid")
	if _, err := ReadPID(path); err == nil {
		t.Fatal("expected error for malformed pid")
	}
}

func TestForceKillRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	_, err := ForceKillProcess(filepath.Join(dir, "none.pid"), "", os.Getpid())
	if err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := ForceKillProcess(filepath.Join(dir, "none.pid"), "", 0); err == nil {
		t.Fatal("expected error without any pid")
	}
}

func TestDaemonNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if _, err := StopAndTerminate(cfg.SocketPath(), cfg, 100*time.Millisecond); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || alive || pid != 0 {
		t.Fatalf("expected unreachable daemon, got %v %d %v", alive, pid, err)
	}
	if _, err := WaitForClient(cfg.SocketPath(), 300*time.Millisecond); err == nil {
		t.Fatal("expected WaitForClient to time out")
	}
}

func TestClassifyStart(t *testing.T) {
	cases := []struct {
		name     string
		resp     *ipc.StartResponse
		launched bool
		want     StartState
		message  string
	}{
		{"nil response", nil, false, StartStateRequested, "Start request sent"},
		{"started", &ipc.StartResponse{Started: true, Message: "daemon started"}, false, StartStateStarted, "daemon started"},
		{"already running", &ipc.StartResponse{Message: "daemon already running"}, false, StartStateAlreadyRunning, "daemon already running"},
		{"already running after launch", &ipc.StartResponse{Message: "daemon already running"}, true, StartStateStarted, "daemon already running"},
		{"other message", &ipc.StartResponse{Message: "lock held"}, false, StartStateRequested, "lock held"},
		{"empty", &ipc.StartResponse{}, true, StartStateRequested, "Start request sent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyStart(tc.resp, tc.launched)
			if got.State != tc.want || got.Message != tc.message || got.Launched != tc.launched {
				t.Fatalf("classifyStart = %+v, want state %s message %q", got, tc.want, tc.message)
			}
		})
	}
}

func TestPollReturnsLastError(t *testing.T) {
	calls := 0
	err := poll(300*time.Millisecond, func() (bool, error) {
		calls++
		return false, errors.New("still busy")
	})
	if err == nil || err.Error() != "still busy" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls < 1 {
		t.Fatal("expected fn to run")
	}
	if err := poll(time.Second, func() (bool, error) { return true, nil }); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	snapshot, err := BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Reachable || snapshot.Status.Running {
		t.Fatal("expected offline snapshot")
	}
	if len(snapshot.Checks) == 0 || !snapshot.Checks[0].Passed {
		t.Fatalf("expected log directory check to pass, got %+v", snapshot.Checks)
	}
	if snapshot.API.Passed {
		t.Fatal("expected API check to be inactive while offline")
	}
	if _, err := BuildStatusSnapshot(context.Background(), cfg.SocketPath(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
