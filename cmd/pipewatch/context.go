package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"pipewatch/internal/config"
	"pipewatch/internal/ipc"
)

// commandContext carries the persistent flags and lazily loaded config
// shared by every subcommand.
type commandContext struct {
	socketFlag *string
	configFlag *string

	loadConfig func() (*config.Config, error)
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	c := &commandContext{socketFlag: socketFlag, configFlag: configFlag}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func (c *commandContext) configPath() string { return flagValue(c.configFlag) }

func (c *commandContext) ensureConfig() (*config.Config, error) { return c.loadConfig() }

// configValue returns the loaded config or nil when loading failed.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.loadConfig()
	return cfg
}

// socketPath prefers --socket, then the config, then the default layout.
// The resolved path is written back into the flag.
func (c *commandContext) socketPath() string {
	if socket := flagValue(c.socketFlag); socket != "" {
		return socket
	}
	var socket string
	if cfg := c.configValue(); cfg != nil {
		socket = cfg.SocketPath()
	} else {
		socket = defaultSocketPath()
	}
	if c.socketFlag != nil {
		*c.socketFlag = socket
	}
	return socket
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return dialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func dialError(err error, socket string) error {
	if errors.Is(err, syscall.ENOENT) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `pipewatch start`", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func defaultSocketPath() string {
	if cfg, _, _, err := config.Load(""); err == nil {
		return cfg.SocketPath()
	}
	if dir, err := config.ExpandPath("~/.local/share/pipewatch/logs"); err == nil {
		return filepath.Join(dir, "pipewatch.sock")
	}
	return filepath.Join(os.TempDir(), "pipewatch.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
