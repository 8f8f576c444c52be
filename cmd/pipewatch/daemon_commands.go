package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pipewatch/internal/api"
	"pipewatch/internal/daemonctl"
	"pipewatch/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the pipewatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startDiagnostic),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartState(stdout, result, "Daemon started")
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the pipewatch daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping watcher...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the pipewatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartDiagnostic),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			printStartState(stdout, result.Start, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, watcher and component status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStartState(stdout io.Writer, result daemonctl.StartResult, startedMessage string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(stdout, startedMessage)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(stdout, "Daemon already running")
	case daemonctl.StartStateRequested:
		if strings.TrimSpace(result.Message) != "" {
			fmt.Fprintln(stdout, result.Message)
			return
		}
		fmt.Fprintln(stdout, "Start request sent")
	}
}

func renderStatus(out io.Writer, snapshot *daemonctl.StatusSnapshot, colorize bool) {
	status := snapshot.Status

	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(out, line)
	}
	switch {
	case !snapshot.Reachable:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
	case !status.Running:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, fmt.Sprintf("Idle (pid %d)", status.PID), colorize))
	default:
		detail := fmt.Sprintf("Running (pid %d)", status.PID)
		if started := formatTimestamp(status.StartedAt); started != "" {
			detail += ", since " + started
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, detail, colorize))
	}
	for _, line := range checkLines(snapshot.Checks, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine(snapshot.API.Name, apiKind(snapshot), snapshot.API.Detail, colorize))

	if !snapshot.Reachable {
		return
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Watcher", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range watcherLines(status.Watcher, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Event buffer", statusInfo, fmt.Sprintf("%d / %d records (last seq %d)", status.BufferSize, status.BufferCap, status.LastSeq), colorize))
	fmt.Fprintln(out, renderStatusLine("Inbox trigger", triggerKind(status.Triggers.InboxDir, status.Triggers.InboxActive), triggerDetail(status.Triggers.InboxDir, status.Triggers.InboxActive), colorize))
	fmt.Fprintln(out, renderStatusLine("Netlink trigger", triggerKind(status.Triggers.NetlinkDevice, status.Triggers.NetlinkActive), triggerDetail(status.Triggers.NetlinkDevice, status.Triggers.NetlinkActive), colorize))

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Components", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable([]string{"Component", "Status", "Last Event", "Last Check"}, componentRows(status.Watcher.ComponentStatus), nil))

	if len(status.Sinks) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Event Sinks", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprint(out, renderTable([]string{"Sink", "Path", "Written", "Dropped", "Failed"}, sinkRows(status.Sinks),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
	}
}

func checkLines(checks []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func apiKind(snapshot *daemonctl.StatusSnapshot) statusKind {
	switch {
	case snapshot.API.Passed:
		return statusOK
	case snapshot.Reachable && snapshot.Status.Running:
		return statusWarn
	default:
		return statusInfo
	}
}

func watcherLines(w api.WatcherStatus, colorize bool) []string {
	kind := statusInfo
	switch w.Mode {
	case "active":
		kind = statusOK
	case "standby":
		kind = statusWarn
	}
	lines := []string{renderStatusLine("Mode", kind, w.Mode, colorize)}
	lines = append(lines, renderStatusLine("Waiting for file", statusInfo, yesNo(w.WaitingForFile), colorize))
	lines = append(lines, renderStatusLine("Active pipelines", statusInfo, strconv.Itoa(w.ActivePipelineCount), colorize))
	if w.TriggerRef != "" {
		detail := w.TriggerRef
		if w.TriggerLabel != "" && w.TriggerLabel != w.TriggerRef {
			detail = fmt.Sprintf("%s (%s)", w.TriggerLabel, w.TriggerRef)
		}
		if at := formatTimestamp(w.ActivatedAt); at != "" {
			detail += " at " + at
		}
		lines = append(lines, renderStatusLine("Activated by", statusInfo, detail, colorize))
	}
	return lines
}

func triggerKind(target string, active bool) statusKind {
	switch {
	case strings.TrimSpace(target) == "":
		return statusInfo
	case active:
		return statusOK
	default:
		return statusWarn
	}
}

func triggerDetail(target string, active bool) string {
	if strings.TrimSpace(target) == "" {
		return "Not configured"
	}
	if active {
		return "Watching " + target
	}
	return "Idle (" + target + ")"
}

func componentRows(statuses map[string]api.ComponentStatus) [][]string {
	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		entry := statuses[name]
		rows = append(rows, []string{
			name,
			entry.Status,
			dashIfEmpty(entry.LastEvent),
			dashIfEmpty(formatTimestamp(entry.LastCheck)),
		})
	}
	return rows
}

func sinkRows(sinks []api.SinkStatus) [][]string {
	rows := make([][]string, 0, len(sinks))
	for _, sink := range sinks {
		rows = append(rows, []string{
			sink.Name,
			sink.Path,
			strconv.FormatUint(sink.Written, 10),
			strconv.FormatUint(sink.Dropped, 10),
			strconv.FormatUint(sink.Failed, 10),
		})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		Diagnostic: diagnostic,
	}
}
