package trigger

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"pipewatch/internal/config"
	"pipewatch/internal/logging"
)

// NetlinkMonitor activates the watcher when media appears on the configured
// block device, such as a USB stick carrying an import batch.
type NetlinkMonitor struct {
	logger *slog.Logger
	target Target
	device string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewNetlinkMonitor returns nil when no netlink device is configured.
func NewNetlinkMonitor(cfg *config.Config, target Target, logger *slog.Logger) *NetlinkMonitor {
	if cfg == nil {
		return nil
	}
	device := strings.TrimSpace(cfg.Trigger.NetlinkDevice)
	if device == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NetlinkMonitor{
		logger: logging.NewComponentLogger(logger, "netlink-monitor"),
		target: target,
		device: device,
	}
}

// Start connects to the kernel uevent socket. Connection failures are logged
// and swallowed; the watcher can still be activated by the inbox or IPC.
func (m *NetlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "netlink connect failed; device activation disabled", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "device insertion does not activate the watcher"),
		)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.loop(runCtx, conn)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop disconnects from the uevent socket.
func (m *NetlinkMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor is connected.
func (m *NetlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// loop owns conn and closes it when ctx ends.
func (m *NetlinkMonitor) loop(ctx context.Context, conn *netlink.UEventConn) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(events, errs, buildMatcher())
	defer func() {
		close(quit)
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			m.handleEvent(ev)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device activation may be missed"),
			)
		}
	}
}

// buildMatcher accepts add and change events from the block subsystem.
func buildMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	})
	return rules
}

// handleEvent activates the watcher for the configured device or one of its
// partitions, and reports whether activation happened.
func (m *NetlinkMonitor) handleEvent(ev netlink.UEvent) bool {
	dev := deviceName(ev)
	if dev == "" || !strings.HasPrefix(dev, m.device) {
		m.logger.Debug("ignoring uevent",
			logging.String("device", dev),
			logging.String("action", string(ev.Action)),
			logging.String("kobj", ev.KObj),
		)
		return false
	}
	if m.target == nil {
		return false
	}

	label := strings.TrimSpace(ev.Env["ID_FS_LABEL"])
	if label == "" {
		label = dev
	}
	activated := m.target.ActivateWatcher(dev, label)
	m.logger.Info("device media detected via netlink",
		logging.String(logging.FieldEventType, "netlink_device_detected"),
		logging.String("device", dev),
		logging.String("action", string(ev.Action)),
		logging.Bool("activated", activated),
	)
	return activated
}

// deviceName returns DEVNAME as an absolute /dev path, falling back to the
// last DEVPATH segment.
func deviceName(ev netlink.UEvent) string {
	if name := ev.Env["DEVNAME"]; name != "" {
		if strings.HasPrefix(name, "/") {
			return name
		}
		return "/dev/" + name
	}
	devpath := strings.TrimRight(ev.Env["DEVPATH"], "/")
	if devpath == "" {
		return ""
	}
	return "/dev/" + path.Base(devpath)
}
