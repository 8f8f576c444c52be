package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pipewatch/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotify()
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), notifyOutcome(resp))
				return nil
			})
		},
	}
}

func notifyOutcome(resp *ipc.TestNotifyResponse) string {
	switch {
	case resp == nil:
		return "Notification not sent"
	case resp.Message != "":
		return resp.Message
	case resp.Sent:
		return "Test notification sent"
	}
	return "Notification not sent"
}
