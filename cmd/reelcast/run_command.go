package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelcast/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, process, and schedule one batch without the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := daemonrun.NewLogger(cfg, daemonrun.Options{LogLevel: logLevel})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			summary, err := daemonrun.RunOnce(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, summary, func() error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "  Fetched:   %d (%d new, %d source failures)\n", summary.Fetched, summary.Unique, summary.SourceFailures)
				fmt.Fprintf(out, "  Processed: %d (%d completed, %d failed)\n", summary.Processed, summary.Completed, summary.Failed)
				fmt.Fprintf(out, "  Scheduled: %d units\n", summary.Scheduled)
				if summary.Interrupted {
					fmt.Fprintln(out, "  Run was interrupted before all items were processed")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline, dispatch, and interaction loops in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	return cmd
}
