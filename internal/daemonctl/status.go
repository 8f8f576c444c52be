package daemonctl

import (
	"context"
	"errors"

	"pipewatch/internal/config"
	"pipewatch/internal/ipc"
	"pipewatch/internal/preflight"
)

// ProcessInfo reports whether the daemon answers on socketPath and its pid.
func ProcessInfo(socketPath string) (alive bool, pid int, err error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	if status != nil {
		pid = status.PID
	}
	return true, pid, nil
}

// StatusSnapshot is what `pipewatch status` renders. Status is never nil;
// an unreachable daemon leaves it zero-valued.
type StatusSnapshot struct {
	Reachable bool
	Status    *ipc.StatusResponse
	Checks    []preflight.Result
	API       preflight.Result
}

// BuildStatusSnapshot combines the daemon's status with local readiness
// checks. The status API is probed only while the daemon is running.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{
		Status: &ipc.StatusResponse{},
		Checks: preflight.RunAll(cfg),
		API:    preflight.Result{Name: "Status API", Detail: "Inactive (daemon not running)"},
	}
	if client, err := ipc.Dial(socketPath); err == nil {
		if resp, err := client.Status(); err == nil && resp != nil {
			snapshot.Reachable = true
			snapshot.Status = resp
		}
		_ = client.Close()
	}
	if snapshot.Reachable && snapshot.Status.Running {
		snapshot.API = preflight.CheckStatusAPI(ctx, cfg.Paths.APIBind, cfg.Paths.APIToken)
	}
	return snapshot, nil
}
