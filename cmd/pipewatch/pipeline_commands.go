package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pipewatch/internal/api"
	"pipewatch/internal/ipc"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "track <source-ref> [label]",
		Short: "Start tracking a pipeline run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.StartPipelineRequest{
				ID:        strings.TrimSpace(id),
				SourceRef: strings.TrimSpace(args[0]),
			}
			req.Label = req.SourceRef
			if len(args) > 1 {
				req.Label = strings.TrimSpace(args[1])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartPipeline(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tracking pipeline %s\n", resp.Pipeline.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Pipeline id (generated when omitted)")
	return cmd
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "stage <pipeline-id> <stage> <started|completed|failed>",
		Short: "Record a stage transition",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseDataPairs(pairs)
			if err != nil {
				return err
			}
			req := ipc.UpdateStageRequest{
				ID:     strings.TrimSpace(args[0]),
				Stage:  strings.TrimSpace(args[1]),
				Status: strings.ToLower(strings.TrimSpace(args[2])),
				Data:   data,
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UpdateStage(req)
				if err != nil {
					return lookupError(err, req.ID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s; pipeline %s is %s\n",
					stageLabel(req.Stage), req.Status, resp.Pipeline.ID, resp.Pipeline.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "data", "d", nil, "Stage payload as key=value (repeatable)")
	return cmd
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "complete <pipeline-id>",
		Short: "Finalize a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := parseDataPairs(pairs)
			if err != nil {
				return err
			}
			req := ipc.CompletePipelineRequest{ID: strings.TrimSpace(args[0]), Summary: summary}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CompletePipeline(req)
				if err != nil {
					return lookupError(err, req.ID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s %s in %s\n",
					resp.Pipeline.ID, resp.Pipeline.Status, formatMillis(resp.Pipeline.TotalDurationMs))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "summary", "s", nil, "Summary entry as key=value (repeatable)")
	return cmd
}

func newPipelinesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List tracked pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pipelines()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Pipelines)
				}
				out := cmd.OutOrStdout()
				if len(resp.Pipelines) == 0 {
					fmt.Fprintln(out, "No pipelines tracked")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(resp.Pipelines))
				for _, p := range resp.Pipelines {
					rows = append(rows, []string{
						p.ID,
						p.Label,
						colorizeStatus(p.Status, colorize),
						stageProgress(p.Stages),
						formatTimestamp(p.StartTime),
						formatMillis(p.TotalDurationMs),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Label", "Status", "Stages", "Started", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <pipeline-id>",
		Short: "Show one pipeline run and its stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pipeline(id)
				if err != nil {
					return lookupError(err, id)
				}
				if jsonOut {
					return writeJSON(cmd, resp.Pipeline)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				p := resp.Pipeline
				printPipelineHeader(out, api.PipelineSummary{
					ID:              p.ID,
					SourceRef:       p.SourceRef,
					Label:           p.Label,
					Status:          p.Status,
					StartTime:       p.StartTime,
					EndTime:         p.EndTime,
					TotalDurationMs: p.TotalDurationMs,
				}, colorize)
				if p.EvictAt != "" {
					fmt.Fprintf(out, "Evicted:  %s\n", formatTimestamp(p.EvictAt))
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderStages(p.Stages, colorize))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "report <pipeline-id>",
		Short: "Print the full report of a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Report(id)
				if err != nil {
					return lookupError(err, id)
				}
				if jsonOut {
					return writeJSON(cmd, resp.Report)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				report := resp.Report
				printPipelineHeader(out, report.Pipeline, colorize)
				if len(report.Summary) > 0 {
					fmt.Fprintf(out, "Summary:  %s\n", formatData(report.Summary))
				}
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Stages", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprint(out, renderStages(report.Stages, colorize))
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Events", colorize) {
					fmt.Fprintln(out, line)
				}
				if len(report.Logs) == 0 {
					fmt.Fprintln(out, "No buffered events")
					return nil
				}
				fmt.Fprint(out, renderRecords(report.Logs))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printPipelineHeader(out io.Writer, p api.PipelineSummary, colorize bool) {
	fmt.Fprintf(out, "Pipeline: %s\n", p.ID)
	fmt.Fprintf(out, "Label:    %s\n", dashIfEmpty(p.Label))
	fmt.Fprintf(out, "Source:   %s\n", dashIfEmpty(p.SourceRef))
	fmt.Fprintf(out, "Status:   %s\n", colorizeStatus(p.Status, colorize))
	fmt.Fprintf(out, "Started:  %s\n", formatTimestamp(p.StartTime))
	if p.EndTime != "" {
		fmt.Fprintf(out, "Ended:    %s (%s)\n", formatTimestamp(p.EndTime), formatMillis(p.TotalDurationMs))
	}
}

func renderStages(stages []api.Stage, colorize bool) string {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{
			stageLabel(s.Name),
			colorizeStatus(s.Status, colorize),
			dashIfEmpty(formatTimestamp(s.StartTime)),
			dashIfEmpty(formatTimestamp(s.EndTime)),
			formatMillis(s.DurationMs),
			formatData(s.Data),
		})
	}
	return renderTable(
		[]string{"Stage", "Status", "Started", "Ended", "Duration", "Data"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func stageProgress(stages []api.Stage) string {
	done := 0
	for _, s := range stages {
		if s.Status == "completed" {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(stages))
}

func lookupError(err error, id string) error {
	if ipc.IsNotFound(err) {
		return fmt.Errorf("pipeline %s not found (it may have been evicted; try `pipewatch logs --history --pipeline %s`)", id, id)
	}
	return err
}
