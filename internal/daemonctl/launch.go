package daemonctl

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"pipewatch/internal/ipc"
)

const dialRetry = 200 * time.Millisecond

// LaunchOptions are forwarded to the hidden `pipewatch daemon` command.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
	Diagnostic bool
}

func (o LaunchOptions) args() []string {
	args := []string{"daemon"}
	if path := strings.TrimSpace(o.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(o.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if o.Diagnostic {
		args = append(args, "--diagnostic")
	}
	return args
}

// StartState describes what EnsureStarted observed.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult reports the outcome of EnsureStarted. Launched is set when a
// new daemon process was spawned.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// Launch spawns a detached daemon in its own session.
func Launch(executable string, opts LaunchOptions) error {
	if strings.TrimSpace(executable) == "" {
		return errors.New("resolve executable: path is empty")
	}
	proc := exec.Command(executable, opts.args()...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient dials socketPath until it answers or timeout passes.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := poll(timeout, func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// EnsureStarted makes sure a daemon process exists and its watcher is
// running, spawning one when the socket is absent.
func EnsureStarted(socketPath, executable string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	launched := false
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executable, opts); err != nil {
			return StartResult{}, err
		}
		if client, err = WaitForClient(socketPath, timeout); err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	if status, err := client.Status(); err == nil && status != nil && status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	return classifyStart(resp, launched), nil
}

func classifyStart(resp *ipc.StartResponse, launched bool) StartResult {
	result := StartResult{State: StartStateRequested, Launched: launched, Message: "Start request sent"}
	if resp == nil {
		return result
	}
	message := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		result.State = StartStateStarted
	case strings.EqualFold(message, "daemon already running") && !launched:
		result.State = StartStateAlreadyRunning
	case strings.EqualFold(message, "daemon already running"):
		result.State = StartStateStarted
	}
	if message != "" || resp.Started {
		result.Message = message
	}
	return result
}

// poll calls fn every dialRetry until it reports done or timeout passes.
// The last error from fn is returned on timeout.
func poll(timeout time.Duration, fn func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := fn()
		if done {
			return nil
		}
		lastErr = err
		if !time.Now().Add(dialRetry).Before(deadline) {
			break
		}
		time.Sleep(dialRetry)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timed out after %s", timeout)
	}
	return lastErr
}
