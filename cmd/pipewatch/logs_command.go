package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pipewatch/internal/api"
	"pipewatch/internal/daemonrun"
	"pipewatch/internal/ipc"
	"pipewatch/internal/logs"
)

const logFollowInterval = time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var component string
	var pipelineID string
	var limit int
	var follow bool
	var history bool
	var listPipelines bool
	var jsonOut bool
	var daemonLog bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display pipeline event logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow && (history || listPipelines) {
				return fmt.Errorf("--follow cannot be combined with --history")
			}
			if daemonLog {
				if history || listPipelines || jsonOut {
					return fmt.Errorf("--daemon cannot be combined with --history or --json")
				}
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				return printDaemonLog(cmd, filepath.Join(cfg.Paths.LogDir, daemonrun.CurrentLogName), limit, follow)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if history || listPipelines {
					return printHistory(cmd, client, ipc.HistoryRequest{
						PipelineID:    strings.TrimSpace(pipelineID),
						Component:     strings.TrimSpace(component),
						Limit:         limit,
						ListPipelines: listPipelines,
					}, jsonOut)
				}
				return printLogs(cmd, client, api.LogFilter{
					Component:  strings.TrimSpace(component),
					PipelineID: strings.TrimSpace(pipelineID),
					Limit:      limit,
				}, follow, jsonOut)
			})
		},
	}

	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	cmd.Flags().StringVarP(&pipelineID, "pipeline", "p", "", "Only show events for this pipeline id")
	cmd.Flags().IntVarP(&limit, "lines", "n", 50, "Number of most recent events to show (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow new events")
	cmd.Flags().BoolVar(&history, "history", false, "Read durable history (journal or archive) instead of the live buffer")
	cmd.Flags().BoolVar(&listPipelines, "list-pipelines", false, "List pipelines recorded in the journal")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&daemonLog, "daemon", false, "Show the daemon's own log file instead of pipeline events")
	return cmd
}

func printLogs(cmd *cobra.Command, client *ipc.Client, filter api.LogFilter, follow, jsonOut bool) error {
	out := cmd.OutOrStdout()
	resp, err := client.Logs(filter)
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}
	if jsonOut && !follow {
		return writeJSON(cmd, resp)
	}
	if !follow {
		if len(resp.Records) == 0 {
			fmt.Fprintln(out, "No log entries available")
			return nil
		}
		fmt.Fprint(out, renderRecords(resp.Records))
		return nil
	}

	for _, record := range resp.Records {
		fmt.Fprintln(out, formatRecordLine(record))
	}
	filter.Since = resp.Next
	filter.Limit = 0
	ticker := time.NewTicker(logFollowInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
		resp, err := client.Logs(filter)
		if err != nil {
			return fmt.Errorf("follow logs: %w", err)
		}
		for _, record := range resp.Records {
			fmt.Fprintln(out, formatRecordLine(record))
		}
		filter.Since = resp.Next
	}
}

func printDaemonLog(cmd *cobra.Command, path string, limit int, follow bool) error {
	out := cmd.OutOrStdout()
	reader := logs.NewReader(path)
	lines, err := reader.Last(limit)
	if err != nil {
		return err
	}
	if len(lines) == 0 && !follow {
		fmt.Fprintf(out, "No daemon log entries at %s\n", path)
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if !follow {
		return nil
	}
	for {
		lines, err := reader.Next(cmd.Context(), logFollowInterval)
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
}

func printHistory(cmd *cobra.Command, client *ipc.Client, req ipc.HistoryRequest, jsonOut bool) error {
	resp, err := client.History(req)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if jsonOut {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	if req.ListPipelines {
		if len(resp.Pipelines) == 0 {
			fmt.Fprintln(out, "No pipelines in the journal")
			return nil
		}
		rows := make([][]string, 0, len(resp.Pipelines))
		for _, p := range resp.Pipelines {
			rows = append(rows, []string{
				p.ID,
				formatTimestamp(p.FirstSeen),
				formatTimestamp(p.LastSeen),
				p.LastEvent,
				strconv.Itoa(p.EventCount),
			})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Pipeline", "First Seen", "Last Seen", "Last Event", "Events"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	}
	if len(resp.Records) == 0 {
		fmt.Fprintf(out, "No history entries (source: %s)\n", resp.Source)
		return nil
	}
	fmt.Fprintf(out, "Source: %s\n", resp.Source)
	fmt.Fprint(out, renderRecords(resp.Records))
	return nil
}

func renderRecords(records []api.LogRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatUint(r.Sequence, 10),
			formatTimestamp(r.Timestamp),
			r.Component,
			r.Event,
			dashIfEmpty(r.PipelineID),
			formatData(r.Data),
		})
	}
	return renderTable(
		[]string{"Seq", "Time", "Component", "Event", "Pipeline", "Data"},
		rows,
		[]columnAlignment{alignRight},
	)
}

func formatRecordLine(r api.LogRecord) string {
	line := fmt.Sprintf("%s %-10s %s", formatTimestamp(r.Timestamp), r.Component, r.Event)
	if r.PipelineID != "" {
		line += " [" + r.PipelineID + "]"
	}
	if data := formatData(r.Data); data != "" {
		line += " " + data
	}
	return line
}
