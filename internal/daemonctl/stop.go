package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pipewatch/internal/config"
	"pipewatch/internal/ipc"
)

// ErrDaemonNotRunning is returned when nothing answers on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult reports how a daemon went away.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate asks the daemon to stop and waits up to grace for its
// socket to disappear before killing the recorded pid.
func StopAndTerminate(socketPath string, cfg *config.Config, grace time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var result StopResult
	if status, err := client.Status(); err == nil && status != nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.StopAcknowledged = resp != nil && resp.Stopped

	// A stopped daemon keeps answering IPC until the process exits.
	gone := poll(grace, func() (bool, error) {
		alive, _, err := ProcessInfo(socketPath)
		return err == nil && !alive, err
	})
	if gone == nil {
		return result, nil
	}

	pid, err := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), result.PID)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = pid
	return result, nil
}

// RestartResult pairs the stop and start halves of a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Restart stops any running daemon, then launches a fresh one.
func Restart(socketPath string, cfg *config.Config, executable string, opts LaunchOptions, stopGrace, startTimeout time.Duration) (RestartResult, error) {
	var result RestartResult
	stop, err := StopAndTerminate(socketPath, cfg, stopGrace)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return result, err
	}
	if err == nil {
		result.WasRunning = true
		result.Stop = stop
	}
	if result.Start, err = EnsureStarted(socketPath, executable, opts, startTimeout); err != nil {
		return result, err
	}
	return result, nil
}

// ReadPID parses the daemon pid file. A missing or empty file yields 0.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", raw, pidPath)
	}
	return pid, nil
}

// ForceKillProcess SIGKILLs the daemon named by pidPath, or fallbackPID when
// the file is absent, then removes the pid and lock files. A process that
// already exited counts as killed.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	switch {
	case pid <= 0:
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	case pid == os.Getpid():
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
