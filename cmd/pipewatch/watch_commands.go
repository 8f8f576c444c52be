package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pipewatch/internal/ipc"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Control the watcher lifecycle",
	}

	watchCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Put the watcher in standby, waiting for the next file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartWatching()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watcher %s\n", resp.Watcher.Mode)
				return nil
			})
		},
	})

	watchCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopWatching()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watcher %s\n", resp.Watcher.Mode)
				return nil
			})
		},
	})

	return watchCmd
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <ref> [label]",
		Short: "Report a detected file and activate the watcher",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.TrimSpace(args[0])
			label := ref
			if len(args) > 1 {
				label = strings.TrimSpace(args[1])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Activate(ref, label)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case resp.Activated:
					fmt.Fprintf(out, "Watcher activated by %s\n", label)
				case resp.Watcher.Mode == "active":
					fmt.Fprintln(out, "Watcher already active")
				default:
					fmt.Fprintf(out, "Watcher %s; trigger ignored (run `pipewatch watch start` first)\n", resp.Watcher.Mode)
				}
				return nil
			})
		},
	}
}
