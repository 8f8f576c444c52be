package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag, configFlag string
	ctx := newCommandContext(&socketFlag, &configFlag)

	root := &cobra.Command{
		Use:           "pipewatch",
		Short:         "Pipeline stage tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Path to the pipewatch daemon socket")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newDaemonRunCommand(ctx),
		newWatchCommand(ctx),
		newTriggerCommand(ctx),
		newTrackCommand(ctx),
		newStageCommand(ctx),
		newCompleteCommand(ctx),
		newPipelinesCommand(ctx),
		newShowCommand(ctx),
		newReportCommand(ctx),
		newLogsCommand(ctx),
		newConfigCommand(ctx),
		newTestNotifyCommand(ctx),
	)
	return root
}
